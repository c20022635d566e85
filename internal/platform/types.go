package platform

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ErrNoSuchElement is wrapped by Session.FindElement when nothing matches.
var ErrNoSuchElement = errors.New("no such element")

// By is a WebDriver element location strategy.
type By string

const (
	ByName            By = "name"
	ByClassName       By = "class name"
	ByID              By = "id"
	ByAccessibilityID By = "accessibility id"
	ByXPath           By = "xpath"
)

// ParseBy converts a strategy name to a By.
func ParseBy(s string) (By, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name":
		return ByName, nil
	case "class", "class name", "classname":
		return ByClassName, nil
	case "id":
		return ByID, nil
	case "accessibility id", "accessibilityid":
		return ByAccessibilityID, nil
	case "xpath":
		return ByXPath, nil
	default:
		return "", fmt.Errorf("unknown locator strategy: %q (expected name, class, id, accessibility id, or xpath)", s)
	}
}

// RootApp is the app capability that attaches to the desktop root.
const RootApp = "Root"

// Capabilities describes the session to create.
type Capabilities struct {
	App               string // Executable path, or RootApp
	AppArguments      string // Launch arguments
	AppTopLevelWindow string // Hex window handle to attach to instead of launching
	PlatformName      string
	DeviceName        string
}

// AppCapabilities returns capabilities launching app with args.
func AppCapabilities(app, args string) Capabilities {
	return Capabilities{App: app, AppArguments: args, PlatformName: "Windows", DeviceName: "WindowsPC"}
}

// WindowCapabilities returns capabilities attaching to an existing
// top-level window. handle is the decimal NativeWindowHandle attribute.
func WindowCapabilities(handle string) (Capabilities, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(handle), 10, 64)
	if err != nil {
		return Capabilities{}, fmt.Errorf("invalid window handle %q: %w", handle, err)
	}
	if n == 0 {
		return Capabilities{}, fmt.Errorf("window handle is zero")
	}
	return Capabilities{AppTopLevelWindow: "0x" + strconv.FormatInt(n, 16)}, nil
}

// IsLocalEndpoint reports whether the endpoint URL points at this host.
func IsLocalEndpoint(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

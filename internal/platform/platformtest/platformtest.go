// Package platformtest provides an in-memory platform.Driver for tests.
package platformtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/platform"
)

// Element is a fake UI element. Attrs holds its attributes, e.g.
// "Name", "ClassName", "AutomationId", "NativeWindowHandle".
type Element struct {
	Attrs map[string]string

	// ClickErr, when set, is returned by Click.
	ClickErr error

	// RootOnly hides the element from sessions not attached to the
	// desktop root.
	RootOnly bool

	driver  *Driver
	session string
}

// NewElement returns an element with the given Name and ClassName.
func NewElement(name, class string) *Element {
	return &Element{Attrs: map[string]string{"Name": name, "ClassName": class}}
}

// Click implements platform.Element.
func (e *Element) Click(ctx context.Context) error {
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.driver.record("click %s @%s", e.Attrs["Name"], e.session)
	return nil
}

// SendKeys implements platform.Element.
func (e *Element) SendKeys(ctx context.Context, text string) error {
	e.driver.record("keys %s %q @%s", e.Attrs["Name"], text, e.session)
	return nil
}

// Attribute implements platform.Element.
func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	return e.Attrs[name], nil
}

// Driver is a fake desktop shared by every session it creates. All
// sessions see the same Elements.
type Driver struct {
	Elements []*Element

	// XPath maps an expression to the names of the elements it selects.
	// "//*" always selects every element.
	XPath map[string][]string

	// SessionErr, when set, fails every NewSession.
	SessionErr error

	// OnExec runs for every Exec call; its error is returned.
	OnExec func(command string) error

	mu       sync.Mutex
	sessions []platform.Capabilities
	execs    []string
	events   []string
}

// Add appends elements to the desktop.
func (d *Driver) Add(els ...*Element) {
	d.Elements = append(d.Elements, els...)
}

func (d *Driver) record(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, fmt.Sprintf(format, args...))
}

// Events returns the recorded clicks and keystrokes in order, formatted
// as `click <name> @<session>` and `keys <name> "<text>" @<session>`.
func (d *Driver) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

// Sessions returns the capabilities of every session created.
func (d *Driver) Sessions() []platform.Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]platform.Capabilities(nil), d.sessions...)
}

// Execs returns every command passed to Exec.
func (d *Driver) Execs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.execs...)
}

// NewSession implements platform.Driver. Session ids are S1, S2, ...
func (d *Driver) NewSession(ctx context.Context, caps platform.Capabilities) (platform.Session, error) {
	if d.SessionErr != nil {
		return nil, d.SessionErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions = append(d.sessions, caps)
	return &Session{driver: d, caps: caps, id: fmt.Sprintf("S%d", len(d.sessions))}, nil
}

// Exec implements platform.Driver.
func (d *Driver) Exec(ctx context.Context, command string) error {
	d.mu.Lock()
	d.execs = append(d.execs, command)
	hook := d.OnExec
	d.mu.Unlock()
	if hook != nil {
		return hook(command)
	}
	return nil
}

// Session is a fake platform.Session.
type Session struct {
	driver *Driver
	caps   platform.Capabilities
	id     string
}

func (s *Session) visible(e *Element) bool {
	return !e.RootOnly || s.caps.App == platform.RootApp
}

// ID implements platform.Session.
func (s *Session) ID() string { return s.id }

// bind returns a handle on e owned by this session.
func (s *Session) bind(e *Element) *Element {
	h := *e
	h.driver = s.driver
	h.session = s.id
	return &h
}

func (s *Session) match(by platform.By, value string) ([]platform.Element, error) {
	var attr string
	switch by {
	case platform.ByName:
		attr = "Name"
	case platform.ByClassName:
		attr = "ClassName"
	case platform.ByID:
		attr = "RuntimeId"
	case platform.ByAccessibilityID:
		attr = "AutomationId"
	case platform.ByXPath:
		return s.xpath(value), nil
	default:
		return nil, fmt.Errorf("unsupported locator %q", by)
	}
	var out []platform.Element
	for _, e := range s.driver.Elements {
		if s.visible(e) && e.Attrs[attr] == value {
			out = append(out, s.bind(e))
		}
	}
	return out, nil
}

func (s *Session) xpath(expr string) []platform.Element {
	var out []platform.Element
	if strings.TrimSpace(expr) == "//*" {
		for _, e := range s.driver.Elements {
			if s.visible(e) {
				out = append(out, s.bind(e))
			}
		}
		return out
	}
	for _, name := range s.driver.XPath[expr] {
		for _, e := range s.driver.Elements {
			if s.visible(e) && e.Attrs["Name"] == name {
				out = append(out, s.bind(e))
			}
		}
	}
	return out
}

// FindElement implements platform.Session.
func (s *Session) FindElement(ctx context.Context, by platform.By, value string) (platform.Element, error) {
	els, err := s.match(by, value)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("find %s=%q: %w", by, value, platform.ErrNoSuchElement)
	}
	return els[0], nil
}

// FindElements implements platform.Session.
func (s *Session) FindElements(ctx context.Context, by platform.By, value string) ([]platform.Element, error) {
	return s.match(by, value)
}

// ErrExec is a convenience error for OnExec hooks.
var ErrExec = errors.New("exec failed")

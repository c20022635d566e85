// Package winapp implements platform.Driver over the WebDriver JSON wire
// protocol spoken by WinAppDriver.
package winapp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/logging"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/platform"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const defaultTimeout = 60 * time.Second

// JSON wire status codes of interest.
const (
	statusSuccess       = 0
	statusNoSuchElement = 7
)

// Error is a failed endpoint request.
type Error struct {
	Method  string
	Path    string
	Status  int    // HTTP status
	Code    string // WebDriver error code or numeric wire status
	Message string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %s (%s)", e.Method, e.Path, msg, e.Code)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, msg)
}

// Unwrap lets errors.Is match platform.ErrNoSuchElement.
func (e *Error) Unwrap() error {
	if e.Code == "no such element" || e.Code == fmt.Sprint(statusNoSuchElement) {
		return platform.ErrNoSuchElement
	}
	return nil
}

// Client is a platform.Driver for one endpoint.
type Client struct {
	base     string
	http     *http.Client
	execApp  string
	execArgs string
	logger   *slog.Logger
}

// New returns a Client for the endpoint base URL, e.g. http://10.0.0.5:4723.
func New(endpoint string, opts platform.Options) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", endpoint)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base:     strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
		execApp:  opts.ExecApp,
		execArgs: opts.ExecArgs,
		logger:   logging.Discard(opts.Logger),
	}, nil
}

// NewSession implements platform.Driver.
func (c *Client) NewSession(ctx context.Context, caps platform.Capabilities) (platform.Session, error) {
	body, err := capabilitiesBody(caps)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/session", body)
	if err != nil {
		return nil, err
	}
	id := resp.Get("sessionId").String()
	if id == "" {
		id = resp.Get("value.sessionId").String()
	}
	if id == "" {
		return nil, fmt.Errorf("POST /session: response carries no session id")
	}
	return &Session{client: c, id: id}, nil
}

// Exec implements platform.Driver. It opens a throwaway session whose
// app is the configured shell and whose arguments carry command, then
// deletes that session if the endpoint returned one.
//
// A shell like "cmd.exe /c start" exits before any window appears, so
// the endpoint often rejects the session after launching the command.
// An error answered by the endpoint is therefore logged and the command
// treated as dispatched; only a failed request is returned.
func (c *Client) Exec(ctx context.Context, command string) error {
	if c.execApp == "" {
		return fmt.Errorf("exec: no launcher application configured")
	}
	args := strings.ReplaceAll(c.execArgs, "{command}", command)
	sess, err := c.NewSession(ctx, platform.AppCapabilities(c.execApp, args))
	var werr *Error
	if errors.As(err, &werr) {
		c.logger.Warn("exec session rejected, command assumed dispatched", "command", command, "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("exec %q: %w", command, err)
	}
	if s, ok := sess.(*Session); ok {
		_ = s.Delete(ctx)
	}
	return nil
}

func capabilitiesBody(caps platform.Capabilities) ([]byte, error) {
	body := []byte(`{"desiredCapabilities":{}}`)
	set := func(key, value string) error {
		if value == "" {
			return nil
		}
		var err error
		body, err = sjson.SetBytes(body, "desiredCapabilities."+key, value)
		return err
	}
	for _, kv := range [][2]string{
		{"app", caps.App},
		{"appArguments", caps.AppArguments},
		{"appTopLevelWindow", caps.AppTopLevelWindow},
		{"platformName", caps.PlatformName},
		{"deviceName", caps.DeviceName},
	} {
		if err := set(kv[0], kv[1]); err != nil {
			return nil, fmt.Errorf("encoding capability %s: %w", kv[0], err)
		}
	}
	return body, nil
}

// do performs one request and returns the parsed response body. Both
// the legacy JSON wire status field and W3C value.error are checked.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (gjson.Result, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return gjson.Result{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s %s: reading response: %w", method, path, err)
	}

	parsed := gjson.ParseBytes(data)
	if code := parsed.Get("value.error").String(); code != "" {
		return parsed, &Error{Method: method, Path: path, Status: resp.StatusCode, Code: code, Message: parsed.Get("value.message").String()}
	}
	if st := parsed.Get("status"); st.Exists() && st.Int() != statusSuccess {
		return parsed, &Error{Method: method, Path: path, Status: resp.StatusCode, Code: st.String(), Message: parsed.Get("value.message").String()}
	}
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if m := parsed.Get("value.message").String(); m != "" {
			msg = m
		}
		return parsed, &Error{Method: method, Path: path, Status: resp.StatusCode, Message: msg}
	}
	return parsed, nil
}

var _ platform.Driver = (*Client)(nil)

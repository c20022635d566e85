package winapp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/platform"
	"github.com/tidwall/gjson"
)

type recorded struct {
	method string
	path   string
	body   string
}

// fakeEndpoint serves a minimal WinAppDriver: one session "S1", one
// element "42" named "Save", and a NativeWindowHandle attribute.
type fakeEndpoint struct {
	mu   sync.Mutex
	reqs []recorded
}

func (f *fakeEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.reqs = append(f.reqs, recorded{r.Method, r.URL.Path, string(data)})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/session":
		io.WriteString(w, `{"sessionId":"S1","status":0,"value":{}}`)
	case r.Method == http.MethodDelete && r.URL.Path == "/session/S1":
		io.WriteString(w, `{"sessionId":"S1","status":0}`)
	case r.URL.Path == "/session/S1/element":
		if gjson.Get(string(data), "value").String() == "Save" {
			io.WriteString(w, `{"sessionId":"S1","status":0,"value":{"ELEMENT":"42"}}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"sessionId":"S1","status":7,"value":{"message":"An element could not be located"}}`)
	case r.URL.Path == "/session/S1/elements":
		io.WriteString(w, `{"status":0,"value":[{"ELEMENT":"42"},{"element-6066-11e4-a52e-4f735466cecf":"43"}]}`)
	case r.URL.Path == "/session/S1/element/42/click", r.URL.Path == "/session/S1/element/42/value":
		io.WriteString(w, `{"status":0,"value":null}`)
	case r.URL.Path == "/session/S1/element/42/attribute/NativeWindowHandle":
		io.WriteString(w, `{"status":0,"value":"198234"}`)
	case strings.HasPrefix(r.URL.Path, "/session/S1/element/42/attribute/"):
		io.WriteString(w, `{"status":0,"value":null}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"value":{"error":"unknown command","message":"no route"}}`)
	}
}

func (f *fakeEndpoint) requests() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.reqs...)
}

func newTestClient(t *testing.T) (*Client, *fakeEndpoint) {
	t.Helper()
	fe := &fakeEndpoint{}
	srv := httptest.NewServer(fe)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, platform.Options{ExecApp: `C:\Windows\System32\cmd.exe`, ExecArgs: `/c start "" {command}`})
	if err != nil {
		t.Fatal(err)
	}
	return c, fe
}

func TestNew_InvalidEndpoint(t *testing.T) {
	for _, ep := range []string{"10.0.0.5:4723", "ftp://host", "://bad"} {
		if _, err := New(ep, platform.Options{}); err == nil {
			t.Errorf("New(%q) should fail", ep)
		}
	}
}

func TestNewSession_SendsCapabilities(t *testing.T) {
	c, fe := newTestClient(t)
	ctx := context.Background()

	sess, err := c.NewSession(ctx, platform.AppCapabilities(`C:\app.exe`, "-x"))
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID() != "S1" {
		t.Errorf("ID = %q, want S1", sess.ID())
	}
	reqs := fe.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	caps := gjson.Get(reqs[0].body, "desiredCapabilities")
	if caps.Get("app").String() != `C:\app.exe` {
		t.Errorf("app = %q", caps.Get("app").String())
	}
	if caps.Get("appArguments").String() != "-x" {
		t.Errorf("appArguments = %q", caps.Get("appArguments").String())
	}
	if caps.Get("appTopLevelWindow").Exists() {
		t.Error("appTopLevelWindow should be omitted when empty")
	}
}

func TestFindElement_NotFound(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	sess, err := c.NewSession(ctx, platform.Capabilities{App: platform.RootApp})
	if err != nil {
		t.Fatal(err)
	}
	_, err = sess.FindElement(ctx, platform.ByName, "Missing")
	if !errors.Is(err, platform.ErrNoSuchElement) {
		t.Fatalf("expected ErrNoSuchElement, got: %v", err)
	}
	var werr *Error
	if !errors.As(err, &werr) || werr.Status != http.StatusNotFound {
		t.Errorf("expected *Error with 404, got: %v", err)
	}
}

func TestElementOperations(t *testing.T) {
	c, fe := newTestClient(t)
	ctx := context.Background()
	sess, err := c.NewSession(ctx, platform.Capabilities{App: platform.RootApp})
	if err != nil {
		t.Fatal(err)
	}
	el, err := sess.FindElement(ctx, platform.ByName, "Save")
	if err != nil {
		t.Fatal(err)
	}
	if err := el.Click(ctx); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if err := el.SendKeys(ctx, "hi"); err != nil {
		t.Fatalf("SendKeys: %v", err)
	}
	h, err := el.Attribute(ctx, "NativeWindowHandle")
	if err != nil || h != "198234" {
		t.Errorf("Attribute = %q, %v; want 198234", h, err)
	}
	empty, err := el.Attribute(ctx, "HelpText")
	if err != nil || empty != "" {
		t.Errorf("null attribute = %q, %v; want empty", empty, err)
	}

	var keys recorded
	for _, r := range fe.requests() {
		if strings.HasSuffix(r.path, "/value") {
			keys = r
		}
	}
	if gjson.Get(keys.body, "text").String() != "hi" {
		t.Errorf("value body = %s", keys.body)
	}
	if n := len(gjson.Get(keys.body, "value").Array()); n != 2 {
		t.Errorf("value array has %d chars, want 2", n)
	}
}

func TestFindElements_BothKeyStyles(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	sess, _ := c.NewSession(ctx, platform.Capabilities{App: platform.RootApp})
	els, err := sess.FindElements(ctx, platform.ByXPath, "//*")
	if err != nil {
		t.Fatal(err)
	}
	if len(els) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(els))
	}
	if id := els[1].(*Element).ID(); id != "43" {
		t.Errorf("second element ID = %q, want 43", id)
	}
}

func TestExec_LaunchesAndDeletes(t *testing.T) {
	c, fe := newTestClient(t)
	if err := c.Exec(context.Background(), `ncat -l 50000`); err != nil {
		t.Fatal(err)
	}
	reqs := fe.requests()
	if len(reqs) != 2 {
		t.Fatalf("expected create+delete, got %d requests", len(reqs))
	}
	args := gjson.Get(reqs[0].body, "desiredCapabilities.appArguments").String()
	if args != `/c start "" ncat -l 50000` {
		t.Errorf("appArguments = %q", args)
	}
	if reqs[1].method != http.MethodDelete {
		t.Errorf("second request = %s %s, want DELETE", reqs[1].method, reqs[1].path)
	}
}

func TestExec_EndpointRejectsShellSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"status":13,"value":{"message":"Failed to locate opened application window with appId: cmd.exe"}}`)
	}))
	defer srv.Close()
	c, err := New(srv.URL, platform.Options{ExecApp: `C:\Windows\System32\cmd.exe`, ExecArgs: `/c start "" {command}`})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Exec(context.Background(), `ncat -l 50000`); err != nil {
		t.Errorf("rejected shell session should count as dispatched, got %v", err)
	}
}

func TestExec_UnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c, err := New(url, platform.Options{ExecApp: `C:\Windows\System32\cmd.exe`, ExecArgs: "{command}"})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Exec(context.Background(), "dir"); err == nil {
		t.Error("expected error when the endpoint cannot be reached")
	}
}

func TestExec_NoLauncher(t *testing.T) {
	c, err := New("http://127.0.0.1:1", platform.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Exec(context.Background(), "dir"); err == nil {
		t.Error("expected error without launcher app")
	}
}

func TestDo_W3CError(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.do(context.Background(), http.MethodGet, "/nowhere", nil)
	var werr *Error
	if !errors.As(err, &werr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if werr.Code != "unknown command" || werr.Message != "no route" {
		t.Errorf("unexpected error fields: %+v", werr)
	}
	if errors.Is(err, platform.ErrNoSuchElement) {
		t.Error("unknown command must not match ErrNoSuchElement")
	}
}

package winapp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/platform"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Keys under which endpoints return element references.
const (
	legacyElementKey = "ELEMENT"
	w3cElementKey    = "element-6066-11e4-a52e-4f735466cecf"
)

// Session is a platform.Session backed by an endpoint session.
type Session struct {
	client *Client
	id     string
}

// ID implements platform.Session.
func (s *Session) ID() string { return s.id }

func (s *Session) path(suffix string) string {
	return "/session/" + url.PathEscape(s.id) + suffix
}

func locatorBody(by platform.By, value string) []byte {
	body, _ := sjson.SetBytes([]byte(`{}`), "using", string(by))
	body, _ = sjson.SetBytes(body, "value", value)
	return body
}

func elementID(v gjson.Result) string {
	if id := v.Get(legacyElementKey).String(); id != "" {
		return id
	}
	return v.Get(w3cElementKey).String()
}

// FindElement implements platform.Session.
func (s *Session) FindElement(ctx context.Context, by platform.By, value string) (platform.Element, error) {
	resp, err := s.client.do(ctx, http.MethodPost, s.path("/element"), locatorBody(by, value))
	if err != nil {
		return nil, err
	}
	id := elementID(resp.Get("value"))
	if id == "" {
		return nil, fmt.Errorf("find %s=%q: %w", by, value, platform.ErrNoSuchElement)
	}
	return &Element{session: s, id: id}, nil
}

// FindElements implements platform.Session.
func (s *Session) FindElements(ctx context.Context, by platform.By, value string) ([]platform.Element, error) {
	resp, err := s.client.do(ctx, http.MethodPost, s.path("/elements"), locatorBody(by, value))
	if err != nil {
		return nil, err
	}
	var out []platform.Element
	for _, v := range resp.Get("value").Array() {
		if id := elementID(v); id != "" {
			out = append(out, &Element{session: s, id: id})
		}
	}
	return out, nil
}

// Delete ends the session on the endpoint.
func (s *Session) Delete(ctx context.Context) error {
	_, err := s.client.do(ctx, http.MethodDelete, s.path(""), nil)
	return err
}

// Element is a platform.Element.
type Element struct {
	session *Session
	id      string
}

// ID returns the endpoint's element reference.
func (e *Element) ID() string { return e.id }

func (e *Element) path(suffix string) string {
	return e.session.path("/element/" + url.PathEscape(e.id) + suffix)
}

// Click implements platform.Element.
func (e *Element) Click(ctx context.Context) error {
	_, err := e.session.client.do(ctx, http.MethodPost, e.path("/click"), []byte(`{}`))
	return err
}

// SendKeys implements platform.Element. The body carries both the
// legacy character array and the W3C text field.
func (e *Element) SendKeys(ctx context.Context, text string) error {
	chars := make([]string, 0, len(text))
	for _, r := range text {
		chars = append(chars, string(r))
	}
	body, err := sjson.SetBytes([]byte(`{}`), "value", chars)
	if err != nil {
		return err
	}
	body, err = sjson.SetBytes(body, "text", text)
	if err != nil {
		return err
	}
	_, err = e.session.client.do(ctx, http.MethodPost, e.path("/value"), body)
	return err
}

// Attribute implements platform.Element.
func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	resp, err := e.session.client.do(ctx, http.MethodGet, e.path("/attribute/"+url.PathEscape(name)), nil)
	if err != nil {
		return "", err
	}
	v := resp.Get("value")
	if v.Type == gjson.Null {
		return "", nil
	}
	return v.String(), nil
}

var (
	_ platform.Session = (*Session)(nil)
	_ platform.Element = (*Element)(nil)
)

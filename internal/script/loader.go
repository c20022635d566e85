// Package script loads script files and enumerates them from a directory.
package script

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/model"
)

// ErrMalformed is wrapped by every parse failure caused by the script's
// content rather than by I/O.
var ErrMalformed = errors.New("malformed script")

type xmlScript struct {
	AppPath *string     `xml:"app_path,attr"`
	Splash  string      `xml:"app_splashscreen"`
	AppName string      `xml:"app_name"`
	AppURL  string      `xml:"app_url"`
	Class   string      `xml:"app_class"`
	AppArgs string      `xml:"app_args"`
	Actions []xmlAction `xml:"action"`
}

type xmlAction struct {
	Type    *string `xml:"type"`
	Name    *string `xml:"name"`
	String  *string `xml:"string"`
	Random  *string `xml:"random"`
	Keys    *string `xml:"keys"`
	Count   *string `xml:"count"`
	Title   *string `xml:"title"`
	Attr    *string `xml:"attr"`
	Command *string `xml:"command"`
	Src     *string `xml:"src"`
	Dest    *string `xml:"dest"`
	Delay   *string `xml:"delay"`
}

// Load reads and parses the script at path.
func Load(path string) (*model.Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening script: %w", err)
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse parses a script document. path is recorded in the result and
// used in error messages only.
func Parse(r io.Reader, path string) (*model.Script, error) {
	var doc xmlScript
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if doc.AppPath == nil {
		return nil, fmt.Errorf("%w: %s: root element has no app_path attribute", ErrMalformed, path)
	}

	meta := model.Metadata{
		AppPath:     strings.TrimSpace(*doc.AppPath),
		AppArgs:     strings.TrimSpace(doc.AppArgs),
		AppName:     strings.TrimSpace(doc.AppName),
		Endpoint:    strings.TrimSpace(doc.AppURL),
		WindowClass: strings.TrimSpace(doc.Class),
	}
	if s := strings.TrimSpace(doc.Splash); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: app_splashscreen %q is not a boolean", ErrMalformed, path, s)
		}
		meta.Splash = b
	}
	if meta.Splash && meta.AppName == "" {
		return nil, fmt.Errorf("%w: %s: app_splashscreen requires app_name", ErrMalformed, path)
	}

	sc := &model.Script{Path: path, Metadata: meta}
	for i, xa := range doc.Actions {
		a, err := convertAction(xa)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: action %d: %v", ErrMalformed, path, i+1, err)
		}
		sc.Actions = append(sc.Actions, a)
	}
	return sc, nil
}

func text(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func required(field string, p *string) (string, error) {
	v := text(p)
	if v == "" {
		return "", fmt.Errorf("missing <%s>", field)
	}
	return v, nil
}

func convertAction(xa xmlAction) (model.Action, error) {
	var a model.Action

	typ, err := required("type", xa.Type)
	if err != nil {
		return a, err
	}
	if a.Kind, err = model.ParseKind(strings.ToLower(typ)); err != nil {
		return a, err
	}
	ds, err := required("delay", xa.Delay)
	if err != nil {
		return a, err
	}
	if a.Delay, err = parseDelay(ds); err != nil {
		return a, err
	}

	switch a.Kind {
	case model.KindClick, model.KindXPath:
		if a.Name, err = required("name", xa.Name); err != nil {
			return a, err
		}
	case model.KindEdit:
		if a.Name, err = required("name", xa.Name); err != nil {
			return a, err
		}
		switch {
		case xa.Random != nil:
			n, err := strconv.Atoi(text(xa.Random))
			if err != nil || n < 1 {
				return a, fmt.Errorf("<random> must be a positive integer, got %q", text(xa.Random))
			}
			a.Random = n
		case xa.String != nil:
			// Literal text keeps its surrounding whitespace.
			a.Text = *xa.String
		default:
			return a, fmt.Errorf("edit needs <string> or <random>")
		}
	case model.KindKey:
		if a.Name, err = required("name", xa.Name); err != nil {
			return a, err
		}
		if a.Keys, err = required("keys", xa.Keys); err != nil {
			return a, err
		}
		if _, err := model.ParseKeys(a.Keys); err != nil {
			return a, err
		}
		a.Count = 1
		if c := text(xa.Count); c != "" {
			n, err := strconv.Atoi(c)
			if err != nil || n < 1 {
				return a, fmt.Errorf("<count> must be a positive integer, got %q", c)
			}
			a.Count = n
		}
	case model.KindGet:
		if a.Name, err = required("name", xa.Name); err != nil {
			return a, err
		}
		if a.Title, err = required("title", xa.Title); err != nil {
			return a, err
		}
		a.Attr = text(xa.Attr)
		if a.Attr == "" {
			a.Attr = model.DefaultCaptureAttr
		}
	case model.KindExe:
		a.Command = text(xa.Command)
		if a.Command == "" {
			a.Command = text(xa.Name)
		}
		if a.Command == "" {
			return a, fmt.Errorf("missing <command>")
		}
	case model.KindUpload, model.KindDownload:
		if a.Src, err = required("src", xa.Src); err != nil {
			return a, err
		}
		if a.Dest, err = required("dest", xa.Dest); err != nil {
			return a, err
		}
	case model.KindDelay:
	}
	return a, nil
}

// parseDelay converts fractional seconds to a duration.
func parseDelay(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("<delay> %q is not a number of seconds", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("<delay> must not be negative, got %s", s)
	}
	return time.Duration(f * float64(time.Second)), nil
}

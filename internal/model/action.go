package model

import (
	"fmt"
	"time"
)

// Kind identifies the variant of a script Action.
type Kind string

const (
	KindClick    Kind = "click"
	KindEdit     Kind = "edit"
	KindKey      Kind = "key"
	KindGet      Kind = "get"
	KindDelay    Kind = "delay"
	KindExe      Kind = "exe"
	KindUpload   Kind = "upload"
	KindDownload Kind = "download"
	KindXPath    Kind = "xpath"
)

// kinds lists every supported kind in document order of the script format.
var kinds = []Kind{KindClick, KindEdit, KindKey, KindGet, KindDelay, KindExe, KindUpload, KindDownload, KindXPath}

// ParseKind converts a script `type` value to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown action type %q", s)
}

// Action is one script step. Only the fields relevant to Kind are set.
type Action struct {
	Kind Kind `yaml:"type" json:"type"`

	// Name is the locator name for click/edit/key/get, or the XPath
	// expression for xpath.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Text is the literal string typed by edit. Ignored when Random > 0.
	Text string `yaml:"text,omitempty" json:"text,omitempty"`

	// Random is the number of random characters typed by edit.
	Random int `yaml:"random,omitempty" json:"random,omitempty"`

	// Keys is the key symbol (or "+"-joined combo) sent Count times by key.
	Keys  string `yaml:"keys,omitempty"  json:"keys,omitempty"`
	Count int    `yaml:"count,omitempty" json:"count,omitempty"`

	// Title is the capture column written by get; Attr is the element
	// attribute read (default "Name").
	Title string `yaml:"title,omitempty" json:"title,omitempty"`
	Attr  string `yaml:"attr,omitempty"  json:"attr,omitempty"`

	// Command is the command line requested by exe.
	Command string `yaml:"command,omitempty" json:"command,omitempty"`

	// Src and Dest are the transfer paths for upload (local→remote) and
	// download (remote→local).
	Src  string `yaml:"src,omitempty"  json:"src,omitempty"`
	Dest string `yaml:"dest,omitempty" json:"dest,omitempty"`

	// Delay is the mandatory pause taken after the action, whatever its outcome.
	Delay time.Duration `yaml:"delay" json:"delay"`
}

// String returns a short human description used in logs.
func (a Action) String() string {
	switch a.Kind {
	case KindUpload, KindDownload:
		return fmt.Sprintf("%s %s -> %s", a.Kind, a.Src, a.Dest)
	case KindExe:
		return fmt.Sprintf("%s %q", a.Kind, a.Command)
	case KindDelay:
		return fmt.Sprintf("%s %s", a.Kind, a.Delay)
	default:
		return fmt.Sprintf("%s %q", a.Kind, a.Name)
	}
}

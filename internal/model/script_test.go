package model

import (
	"reflect"
	"strings"
	"testing"
)

func TestCaptureTitles_DocumentOrderNoDuplicates(t *testing.T) {
	s := &Script{Actions: []Action{
		{Kind: KindClick, Name: "File"},
		{Kind: KindGet, Name: "Label2", Title: "cpu"},
		{Kind: KindDelay},
		{Kind: KindGet, Name: "Label1", Title: "build"},
		{Kind: KindGet, Name: "Label3", Title: "cpu"},
	}}
	got := s.CaptureTitles()
	want := []string{"cpu", "build"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CaptureTitles() = %v, want %v", got, want)
	}
}

func TestCaptureTitles_NoGets(t *testing.T) {
	s := &Script{Actions: []Action{{Kind: KindClick, Name: "OK"}}}
	if got := s.CaptureTitles(); len(got) != 0 {
		t.Errorf("expected no titles, got %v", got)
	}
}

func TestReadTargets(t *testing.T) {
	input := "10.0.0.5\n\n# lab\n10.0.0.6\r\n  10.0.0.7  \n"
	got, err := ReadTargets(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"10.0.0.5", "10.0.0.6", "10.0.0.7"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadTargets() = %v, want %v", got, want)
	}
}

func TestReadTargets_Duplicate(t *testing.T) {
	if _, err := ReadTargets(strings.NewReader("10.0.0.5\n10.0.0.5\n")); err == nil {
		t.Error("expected duplicate target error")
	}
}

func TestReadTargets_Invalid(t *testing.T) {
	if _, err := ReadTargets(strings.NewReader("10.0.0.5,1234\n")); err == nil {
		t.Error("expected error for address containing a comma")
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"click", "edit", "key", "get", "delay", "exe", "upload", "download", "xpath"} {
		k, err := ParseKind(s)
		if err != nil {
			t.Errorf("ParseKind(%q) error: %v", s, err)
		}
		if string(k) != s {
			t.Errorf("ParseKind(%q) = %q", s, k)
		}
	}
	if _, err := ParseKind("swipe"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

package model

import "testing"

func TestParseKeys_NamedKeys(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"RETURN", KeyReturn},
		{"return", KeyReturn},
		{"TAB", KeyTab},
		{"DELETE", KeyDelete},
		{"SPACE", KeySpace},
		{"BACKSPACE", KeyBackspace},
		{"F1", KeyF1},
		{"F12", "\ue03c"},
	}
	for _, tt := range tests {
		got, err := ParseKeys(tt.input)
		if err != nil {
			t.Errorf("ParseKeys(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKeys(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseKeys_SingleCharacterIsLiteral(t *testing.T) {
	for _, s := range []string{"a", "Z", "7", "+", "é"} {
		got, err := ParseKeys(s)
		if err != nil {
			t.Fatalf("ParseKeys(%q) error: %v", s, err)
		}
		if got != s {
			t.Errorf("ParseKeys(%q) = %q, want literal", s, got)
		}
	}
}

func TestParseKeys_ComboReleasesModifiers(t *testing.T) {
	got, err := ParseKeys("CTRL+N")
	if err != nil {
		t.Fatal(err)
	}
	if want := KeyControl + "N" + KeyNull; got != want {
		t.Errorf("ParseKeys(CTRL+N) = %q, want %q", got, want)
	}

	got, err = ParseKeys("ALT+F4")
	if err != nil {
		t.Fatal(err)
	}
	if want := KeyAlt + "\ue034" + KeyNull; got != want {
		t.Errorf("ParseKeys(ALT+F4) = %q, want %q", got, want)
	}
}

func TestParseKeys_Unknown(t *testing.T) {
	if _, err := ParseKeys("HYPER"); err == nil {
		t.Error("expected error for unknown key name")
	}
	if _, err := ParseKeys("CTRL+HYPER"); err == nil {
		t.Error("expected error for unknown key in combo")
	}
	if _, err := ParseKeys(""); err == nil {
		t.Error("expected error for empty symbol")
	}
}

package script

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/model"
)

const fullScript = `<script app_path="C:\Windows\System32\notepad.exe">
  <app_splashscreen>1</app_splashscreen>
  <app_name>Notepad</app_name>
  <app_url>http://10.0.0.5:4723</app_url>
  <app_class>Notepad</app_class>
  <app_args>C:\tmp\a.txt</app_args>
  <action><type>click</type><name>File</name><delay>1.0</delay></action>
  <action><type>edit</type><name>Edit</name><string> hello </string><delay>0.5</delay></action>
  <action><type>edit</type><name>Edit</name><random>16</random><delay>0.5</delay></action>
  <action><type>key</type><name>Edit</name><keys>CTRL+S</keys><delay>1</delay></action>
  <action><type>get</type><name>Label1</name><title>build</title><delay>1</delay></action>
  <action><type>exe</type><command>shutdown /r</command><delay>0</delay></action>
  <action><type>upload</type><src>local.bin</src><dest>C:\tmp\r.bin</dest><delay>1</delay></action>
  <action><type>download</type><src>C:\tmp\s.jpg</src><dest>s.jpg</dest><delay>1</delay></action>
  <action><type>delay</type><delay>2.25</delay></action>
  <action><type>xpath</type><name>//Button[@Name='OK']</name><delay>1</delay></action>
</script>`

func TestParse_Full(t *testing.T) {
	sc, err := Parse(strings.NewReader(fullScript), "full.xml")
	if err != nil {
		t.Fatal(err)
	}
	wantMeta := model.Metadata{
		AppPath:     `C:\Windows\System32\notepad.exe`,
		AppArgs:     `C:\tmp\a.txt`,
		AppName:     "Notepad",
		Endpoint:    "http://10.0.0.5:4723",
		WindowClass: "Notepad",
		Splash:      true,
	}
	if sc.Metadata != wantMeta {
		t.Errorf("metadata = %+v, want %+v", sc.Metadata, wantMeta)
	}
	if len(sc.Actions) != 10 {
		t.Fatalf("expected 10 actions, got %d", len(sc.Actions))
	}

	kinds := []model.Kind{
		model.KindClick, model.KindEdit, model.KindEdit, model.KindKey, model.KindGet,
		model.KindExe, model.KindUpload, model.KindDownload, model.KindDelay, model.KindXPath,
	}
	for i, k := range kinds {
		if sc.Actions[i].Kind != k {
			t.Errorf("action %d kind = %s, want %s", i+1, sc.Actions[i].Kind, k)
		}
	}
	if sc.Actions[0].Delay != time.Second {
		t.Errorf("click delay = %s", sc.Actions[0].Delay)
	}
	if sc.Actions[1].Text != " hello " {
		t.Errorf("edit text = %q, want whitespace preserved", sc.Actions[1].Text)
	}
	if sc.Actions[2].Random != 16 {
		t.Errorf("random = %d", sc.Actions[2].Random)
	}
	if sc.Actions[3].Count != 1 {
		t.Errorf("key count default = %d, want 1", sc.Actions[3].Count)
	}
	if got := sc.Actions[4]; got.Title != "build" || got.Attr != model.DefaultCaptureAttr {
		t.Errorf("get = %+v", got)
	}
	if sc.Actions[5].Command != "shutdown /r" || sc.Actions[5].Delay != 0 {
		t.Errorf("exe = %+v", sc.Actions[5])
	}
	if sc.Actions[8].Delay != 2250*time.Millisecond {
		t.Errorf("delay = %s, want 2.25s", sc.Actions[8].Delay)
	}
}

func TestParse_Deterministic(t *testing.T) {
	a, err := Parse(strings.NewReader(fullScript), "a.xml")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse(strings.NewReader(fullScript), "a.xml")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Actions, b.Actions) {
		t.Error("parsing the same document twice gave different actions")
	}
}

func TestParse_ExeFallsBackToName(t *testing.T) {
	doc := `<s app_path="x"><action><type>exe</type><name>notepad.exe</name><delay>1</delay></action></s>`
	sc, err := Parse(strings.NewReader(doc), "exe.xml")
	if err != nil {
		t.Fatal(err)
	}
	if sc.Actions[0].Command != "notepad.exe" {
		t.Errorf("command = %q", sc.Actions[0].Command)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not xml", `<script app_path="x">`},
		{"no app_path", `<script><action><type>delay</type><delay>1</delay></action></script>`},
		{"missing delay", `<s app_path="x"><action><type>click</type><name>A</name></action></s>`},
		{"missing type", `<s app_path="x"><action><name>A</name><delay>1</delay></action></s>`},
		{"unknown type", `<s app_path="x"><action><type>drag</type><name>A</name><delay>1</delay></action></s>`},
		{"bad delay", `<s app_path="x"><action><type>delay</type><delay>soon</delay></action></s>`},
		{"negative delay", `<s app_path="x"><action><type>delay</type><delay>-1</delay></action></s>`},
		{"click no name", `<s app_path="x"><action><type>click</type><delay>1</delay></action></s>`},
		{"get no title", `<s app_path="x"><action><type>get</type><name>A</name><delay>1</delay></action></s>`},
		{"edit no text", `<s app_path="x"><action><type>edit</type><name>A</name><delay>1</delay></action></s>`},
		{"edit bad random", `<s app_path="x"><action><type>edit</type><name>A</name><random>0</random><delay>1</delay></action></s>`},
		{"key unknown", `<s app_path="x"><action><type>key</type><name>A</name><keys>HYPER</keys><delay>1</delay></action></s>`},
		{"key bad count", `<s app_path="x"><action><type>key</type><name>A</name><keys>TAB</keys><count>x</count><delay>1</delay></action></s>`},
		{"upload no dest", `<s app_path="x"><action><type>upload</type><src>a</src><delay>1</delay></action></s>`},
		{"exe empty", `<s app_path="x"><action><type>exe</type><delay>1</delay></action></s>`},
		{"splash flag", `<s app_path="x"><app_splashscreen>maybe</app_splashscreen></s>`},
		{"splash no name", `<s app_path="x"><app_splashscreen>1</app_splashscreen></s>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc), tt.name)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got: %v", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.xml"))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrMalformed) {
		t.Error("a missing file is not a malformed script")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got: %v", err)
	}
}

// Package output prints command results as YAML or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format represents the output format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// OutputFormat is the current output format, set by the root command's --format flag.
var OutputFormat Format = FormatYAML

// PrettyOutput enables pretty-printing for JSON output.
var PrettyOutput bool

// ParseFormat converts a --format value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s (expected yaml or json)", s)
	}
}

// TargetStatus is one target in the output of `status`.
type TargetStatus struct {
	Address   string            `yaml:"address"              json:"address"`
	PID       int               `yaml:"pid,omitempty"        json:"pid,omitempty"`
	Alive     bool              `yaml:"alive"                json:"alive"`
	Rows      int               `yaml:"rows,omitempty"       json:"rows,omitempty"`
	Values    map[string]string `yaml:"values,omitempty"     json:"values,omitempty"`
	LastError string            `yaml:"error,omitempty"      json:"error,omitempty"`
}

// StatusResult is the output of `status`.
type StatusResult struct {
	PIDFile  string         `yaml:"pid_file"  json:"pid_file"`
	Database string         `yaml:"database"  json:"database"`
	Targets  []TargetStatus `yaml:"targets"   json:"targets"`
}

// PSNRResult is the output of `psnr`.
type PSNRResult struct {
	Reference string  `yaml:"reference" json:"reference"`
	Candidate string  `yaml:"candidate" json:"candidate"`
	PSNR      float64 `yaml:"psnr"      json:"psnr"`
	Pass      *bool   `yaml:"pass,omitempty" json:"pass,omitempty"`
}

// Print serializes v to stdout in the current output format.
func Print(v interface{}) error {
	return Fprint(os.Stdout, OutputFormat, v)
}

// Fprint serializes v to w in format f.
func Fprint(w io.Writer, f Format, v interface{}) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		if PrettyOutput {
			enc.SetIndent("", "  ")
		}
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("yaml encode: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format: %s", f)
	}
}

// String renders v in format f, for tool results that are returned
// rather than printed.
func String(f Format, v interface{}) (string, error) {
	var b strings.Builder
	if err := Fprint(&b, f, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

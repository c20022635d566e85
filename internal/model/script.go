package model

// DefaultCaptureAttr is the element attribute read by a get action that
// does not name one.
const DefaultCaptureAttr = "Name"

// Metadata holds the run-level settings declared by a script.
type Metadata struct {
	AppPath     string `yaml:"app_path"               json:"app_path"`
	AppArgs     string `yaml:"app_args,omitempty"     json:"app_args,omitempty"`
	AppName     string `yaml:"app_name,omitempty"     json:"app_name,omitempty"`
	Endpoint    string `yaml:"app_url,omitempty"      json:"app_url,omitempty"`
	WindowClass string `yaml:"app_class,omitempty"    json:"app_class,omitempty"`
	Splash      bool   `yaml:"app_splashscreen"       json:"app_splashscreen"`
}

// Script is a parsed script file: ordered actions plus metadata.
type Script struct {
	Path     string   `yaml:"path"    json:"path"`
	Metadata Metadata `yaml:"meta"    json:"meta"`
	Actions  []Action `yaml:"actions" json:"actions"`
}

// CaptureTitles returns the titles of the script's get actions in
// document order, without duplicates. This is the static column set of
// any CaptureRecord the script produces.
func (s *Script) CaptureTitles() []string {
	seen := make(map[string]bool)
	var titles []string
	for _, a := range s.Actions {
		if a.Kind != KindGet || a.Title == "" || seen[a.Title] {
			continue
		}
		seen[a.Title] = true
		titles = append(titles, a.Title)
	}
	return titles
}

package model

// CaptureRecord holds the values captured by one script execution on
// one target. Titles that were not captured are absent from Values.
type CaptureRecord struct {
	Target string            `yaml:"target" json:"target"`
	Values map[string]string `yaml:"values" json:"values"`
}

// NewCaptureRecord returns an empty record for target.
func NewCaptureRecord(target string) *CaptureRecord {
	return &CaptureRecord{Target: target, Values: make(map[string]string)}
}

// Set stores a captured value under title.
func (r *CaptureRecord) Set(title, value string) {
	r.Values[title] = value
}

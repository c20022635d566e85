package model

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Target is one remote machine under test, identified by its address.
type Target struct {
	Address string `yaml:"address"              json:"address"`
	PID     int    `yaml:"pid,omitempty"        json:"pid,omitempty"`
	Alive   bool   `yaml:"alive"                json:"alive"`

	// ViewerPID is the paired viewer process, when viewers are enabled.
	ViewerPID int `yaml:"viewer_pid,omitempty" json:"viewer_pid,omitempty"`
}

// ReadTargets parses a newline-delimited target list. Blank lines and
// lines starting with '#' are skipped; duplicates are rejected because a
// target may own at most one worker.
func ReadTargets(r io.Reader) ([]string, error) {
	var targets []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		addr := strings.TrimSpace(scanner.Text())
		if addr == "" || strings.HasPrefix(addr, "#") {
			continue
		}
		if strings.ContainsAny(addr, " \t,") {
			return nil, fmt.Errorf("line %d: invalid target address %q", line, addr)
		}
		if seen[addr] {
			return nil, fmt.Errorf("line %d: duplicate target %q", line, addr)
		}
		seen[addr] = true
		targets = append(targets, addr)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading target list: %w", err)
	}
	return targets, nil
}

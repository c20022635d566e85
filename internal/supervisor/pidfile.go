package supervisor

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/model"
)

// WritePIDFile replaces path with one "<address>,<pid>" line per target.
// Targets without a live worker are written with pid 0. The file is
// written to a temporary name and renamed so readers never see a
// partial mapping.
func WritePIDFile(path string, targets []model.Target) error {
	var buf bytes.Buffer
	for _, t := range targets {
		pid := t.PID
		if !t.Alive {
			pid = 0
		}
		fmt.Fprintf(&buf, "%s,%d\n", t.Address, pid)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temporary pid file: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temporary pid file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temporary pid file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming pid file into place: %w", err)
	}
	return nil
}

// ReadPIDFile parses a pid-mapping file. Alive is left false; callers
// probe liveness themselves.
func ReadPIDFile(path string) ([]model.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []model.Target
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		addr, pidStr, ok := strings.Cut(text, ",")
		if !ok {
			return nil, fmt.Errorf("%s:%d: expected <address>,<pid>", filepath.Base(path), line)
		}
		pid, err := strconv.Atoi(strings.TrimSpace(pidStr))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid pid %q", filepath.Base(path), line, pidStr)
		}
		out = append(out, model.Target{Address: strings.TrimSpace(addr), PID: pid})
	}
	return out, sc.Err()
}

package script

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
)

// ErrNoScripts is returned by Iterator.Next when a scan finds nothing.
var ErrNoScripts = errors.New("no scripts found")

// Iterator yields script paths under a directory in lexical walk order,
// rescanning from the top each time the previous scan is exhausted. A
// scan sees files added or removed since the last one.
type Iterator struct {
	dir    string
	ext    string
	passes int // 0 means unbounded

	pass  int
	paths []string
	next  int
}

// NewIterator returns an unbounded iterator over files under dir whose
// extension matches ext, case-insensitively.
func NewIterator(dir, ext string) *Iterator {
	return &Iterator{dir: dir, ext: strings.ToLower(ext)}
}

// Bounded returns an iterator that stops with io.EOF after passes scans.
func Bounded(dir, ext string, passes int) *Iterator {
	it := NewIterator(dir, ext)
	it.passes = passes
	return it
}

// Pass returns the number of scans started so far.
func (it *Iterator) Pass() int { return it.pass }

// Next returns the next script path. It returns ErrNoScripts when a
// fresh scan is empty, io.EOF when a bounded iterator has used all of
// its passes, and the walk error if the directory cannot be read. A
// later call after ErrNoScripts scans again.
func (it *Iterator) Next() (string, error) {
	if it.next >= len(it.paths) {
		if it.passes > 0 && it.pass >= it.passes {
			return "", io.EOF
		}
		it.pass++
		paths, err := it.scan()
		it.paths, it.next = paths, 0
		if err != nil {
			return "", err
		}
		if len(paths) == 0 {
			return "", ErrNoScripts
		}
	}
	p := it.paths[it.next]
	it.next++
	return p, nil
}

func (it *Iterator) scan() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(it.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != it.dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) == it.ext {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

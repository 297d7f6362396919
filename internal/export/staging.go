package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/otiai10/copy"
)

// outputName matches the files runs write. Other files in an existing output
// directory are never touched.
var outputName = regexp.MustCompile(`^(\d+\.(pg|dot)|subgame\.(pg|pg\.sol|dot)|kraam\.hcl|metrics\.prom|cpu\.pprof)$`)

// Staging collects the files of a run in a temporary directory. The output
// directory only changes once the run commits, so a failed run leaves it
// untouched.
//
// When the output directory already exists, the staging directory is created
// inside it and Commit moves the staged files into place, removing output
// files of earlier runs which weren't written again. Otherwise the staging
// directory is created next to it and renamed on Commit.
type Staging struct {
	dir, out string
	merge    bool
	done     bool
}

// NewStaging creates a staging directory for out.
func NewStaging(out string) (*Staging, error) {
	out, err := filepath.Abs(out)
	if err != nil {
		return nil, fmt.Errorf("resolving output directory: %w", err)
	}

	fi, err := os.Stat(out)
	switch {
	case err == nil && !fi.IsDir():
		return nil, fmt.Errorf("output %s exists and is not a directory", out)
	case err == nil:
		dir, err := os.MkdirTemp(out, ".kraam-staging-")
		if err != nil {
			return nil, fmt.Errorf("creating staging directory: %w", err)
		}
		return &Staging{dir: dir, out: out, merge: true}, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("checking output directory: %w", err)
	}

	parent := filepath.Dir(out)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", parent, err)
	}
	dir, err := os.MkdirTemp(parent, "."+filepath.Base(out)+".staging-")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	return &Staging{dir: dir, out: out}, nil
}

// Dir returns the staging directory.
func (s *Staging) Dir() string { return s.dir }

// Path returns the staged location of the output file name.
func (s *Staging) Path(name string) string { return filepath.Join(s.dir, name) }

// Commit moves the staged files into the output directory. If Commit fails,
// Abort still removes the staging directory.
func (s *Staging) Commit() error {
	if s.done {
		return fmt.Errorf("staging directory for %s already finished", s.out)
	}

	var err error
	if s.merge {
		err = s.commitInto()
	} else {
		err = s.commitNew()
	}
	if err != nil {
		return err
	}
	s.done = true
	return nil
}

// commitNew renames the staging directory to the output directory, falling
// back to copying.
func (s *Staging) commitNew() error {
	if err := os.Rename(s.dir, s.out); err == nil {
		return nil
	}
	if err := copy.Copy(s.dir, s.out); err != nil {
		return fmt.Errorf("copying %s to %s: %w", s.dir, s.out, err)
	}
	return os.RemoveAll(s.dir)
}

// commitInto moves every staged file into the existing output directory and
// then removes stale output files.
func (s *Staging) commitInto() error {
	staged, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading staging directory: %w", err)
	}
	written := make(map[string]struct{}, len(staged))
	for _, e := range staged {
		from, to := filepath.Join(s.dir, e.Name()), filepath.Join(s.out, e.Name())
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("moving %s into %s: %w", e.Name(), s.out, err)
		}
		written[e.Name()] = struct{}{}
	}

	existing, err := os.ReadDir(s.out)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.out, err)
	}
	for _, e := range existing {
		if _, ok := written[e.Name()]; ok || !e.Type().IsRegular() || !outputName.MatchString(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(s.out, e.Name())); err != nil {
			return fmt.Errorf("removing stale output: %w", err)
		}
	}
	return os.RemoveAll(s.dir)
}

// Abort discards the staged files. Abort is a no-op after a successful
// Commit.
func (s *Staging) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	return os.RemoveAll(s.dir)
}

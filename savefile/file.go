// Package savefile persists the treasury: a small framed binary format with
// version-gated fields, a uniform sanitization pass on load, and helpers to
// save and restore a budget.Engine.
package savefile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/warp/treasury-engine/budget"
)

// Magic opens every save file.
var Magic = [4]byte{'T', 'R', 'S', 'Y'}

// =============================================================================
// HEADER
// =============================================================================

// WriteHeader writes the magic and version.
func WriteHeader(w io.Writer, version int) error {
	wr := &writer{w: w}
	wr.write(Magic)
	wr.int32(int32(version))
	return wr.err
}

// ReadHeader checks the magic and returns the version.
func ReadHeader(r io.Reader) (int, error) {
	rd := &reader{r: r}
	var magic [4]byte
	rd.read(&magic)
	version := int(rd.int32())
	if rd.err != nil {
		return 0, rd.err
	}
	if magic != Magic {
		return 0, ErrBadMagic
	}
	if !supported(version) {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	return version, nil
}

// =============================================================================
// ENGINE SAVE / LOAD
// =============================================================================

// Save writes the engine state as a complete current-version file.
func Save(w io.Writer, e *budget.Engine) error {
	if err := WriteHeader(w, CurrentVersion); err != nil {
		return err
	}
	return Encode(w, e.State(), CurrentVersion, e.Fallbacks().StartYear)
}

// Load reads a complete file, sanitizes it and restores it into e. Corrupt
// values are reported through the engine's reporter and never fail the load;
// only framing and truncation errors do, and they leave e untouched.
func Load(r io.Reader, e *budget.Engine) (int, error) {
	version, err := ReadHeader(r)
	if err != nil {
		return 0, err
	}
	fb := e.Fallbacks()
	s, err := Decode(r, version, fb.StartYear)
	if err != nil {
		return version, err
	}
	Sanitize(&s, fb, e.Reporter())
	e.Restore(s, version, VersionLegacyReset)
	return version, nil
}

// Marshal is Save into a byte slice.
func Marshal(e *budget.Engine) ([]byte, error) {
	var buf bytes.Buffer
	if err := Save(&buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal is Load from a byte slice.
func Unmarshal(data []byte, e *budget.Engine) (int, error) {
	return Load(bytes.NewReader(data), e)
}

// =============================================================================
// FILES
// =============================================================================

// WriteFile saves e to path through a temporary file in the same directory,
// so a crash never leaves a half-written save behind.
func WriteFile(path string, e *budget.Engine) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp save: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := Save(bw, e); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close save: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename save: %w", err)
	}
	return nil
}

// ReadFile loads path into e and returns the file version.
func ReadFile(path string, e *budget.Engine) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open save: %w", err)
	}
	defer f.Close()
	return Load(bufio.NewReader(f), e)
}

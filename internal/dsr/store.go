package dsr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/giai-dev/giai/internal/giaierr"
)

// Store persists Records under dsr/<commit>.json, enforcing
// immutability: a rewrite that differs byte-for-byte from what's on
// disk is a hard error (KindDsrConflict), never a silent overwrite.
type Store struct {
	dir string
}

// NewStore opens (without creating) the dsr directory under root.
func NewStore(root string) *Store {
	return &Store{dir: filepath.Join(root, "dsr")}
}

// Dir returns the directory Records are written under.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(commit string) string {
	return filepath.Join(s.dir, commit+".json")
}

// Canonical serializes rec with stable key order and two-space
// indent, matching canonicalization step.
func Canonical(rec *Record) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("dsr: marshaling record for %s: %w", rec.CommitHash, err)
	}
	return append(data, '\n'), nil
}

// Write persists rec atomically (tmp file + rename). If a record
// already exists for this commit, its content must match byte for
// byte; any difference is a giaierr.DsrConflict.
func (s *Store) Write(rec *Record) error {
	data, err := Canonical(rec)
	if err != nil {
		return err
	}

	target := s.path(rec.CommitHash)
	existing, err := os.ReadFile(target)
	if err == nil {
		if bytes.Equal(existing, data) {
			return nil
		}
		return giaierr.DsrConflict(rec.CommitHash)
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("dsr: reading existing record for %s: %w", rec.CommitHash, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("dsr: creating %s: %w", s.dir, err)
	}
	tmp := filepath.Join(s.dir, fmt.Sprintf("%s.json.tmp-%d-%d", rec.CommitHash, os.Getpid(), time.Now().UnixNano()))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("dsr: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("dsr: renaming %s to %s: %w", tmp, target, err)
	}
	return nil
}

// Read loads the Record for commit, or os.ErrNotExist-wrapping error
// if none has been written.
func (s *Store) Read(commit string) (*Record, error) {
	data, err := os.ReadFile(s.path(commit))
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("dsr: decoding record for %s: %w", commit, err)
	}
	return &rec, nil
}

// Has reports whether a Record has already been written for commit.
func (s *Store) Has(commit string) bool {
	_, err := os.Stat(s.path(commit))
	return err == nil
}

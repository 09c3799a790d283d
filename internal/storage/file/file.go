// Package file stores cart snapshots as JSON files, one per slot.
package file

import (
	"context"
	"os"
	"path/filepath"
	"regexp"

	"github.com/go-faster/errors"

	"github.com/xenking/tripcart/internal/domain/cart"
)

// ErrInvalidSlot is returned for slot names that cannot be used as a file name.
var ErrInvalidSlot = errors.New("invalid slot name")

var slotName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Dir keeps each slot in <dir>/<slot>.json.
type Dir struct {
	path string
}

// NewDir creates the directory if needed and returns a Dir rooted at it.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	return &Dir{path: path}, nil
}

// Slot returns the persister for the named slot. Names outside
// [A-Za-z0-9_-] yield a persister whose operations fail with ErrInvalidSlot.
func (d *Dir) Slot(name string) cart.Persister {
	return &slot{dir: d, name: name}
}

// Writable reports whether a file can be created in the directory.
func (d *Dir) Writable(_ context.Context) error {
	f, err := os.CreateTemp(d.path, ".probe-*")
	if err != nil {
		return errors.Wrap(err, "probe")
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

type slot struct {
	dir  *Dir
	name string
}

func (s *slot) file() (string, error) {
	if !slotName.MatchString(s.name) {
		return "", errors.Wrapf(ErrInvalidSlot, "%q", s.name)
	}
	return filepath.Join(s.dir.path, s.name+".json"), nil
}

func (s *slot) Load(_ context.Context) (cart.Snapshot, error) {
	path, err := s.file()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cart.Snapshot{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read slot")
	}
	return cart.DecodeSnapshot(data)
}

// Save writes to a temporary file and renames it over the slot, so a crash
// never leaves a half-written snapshot behind.
func (s *slot) Save(_ context.Context, snap cart.Snapshot) error {
	path, err := s.file()
	if err != nil {
		return err
	}
	data, err := cart.EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir.path, s.name+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "rename")
	}
	return nil
}

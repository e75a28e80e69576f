// Package filestore persists the registry as a single JSON document:
//
//	{"functions": [ {definition}, ... ]}
//
// The whole document is rewritten on every save, through a temporary file in
// the same directory that is synced and then renamed over the target. Loading
// is tolerant: a record that cannot be decoded is skipped, and a truncated or
// corrupt document yields every record before the damage. The damaged file is
// copied aside to "<path>.corrupt" so the next save cannot destroy it.
package filestore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/vk/paramfn/internal/ctxlog"
	"github.com/vk/paramfn/internal/model"
	"github.com/vk/paramfn/internal/store"
)

// CorruptSuffix is appended to the path of a document that failed to parse.
const CorruptSuffix = ".corrupt"

const functionsKey = "functions"

var _ store.Store = (*Store)(nil)

// Store is a store.Store backed by one JSON file.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a store for the document at path. The file is not touched
// until Load or Save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the document.
func (s *Store) Path() string {
	return s.path
}

// record is the on-disk shape of one definition. Early documents called the
// source field "code".
type record struct {
	model.Definition
	Code string `json:"code,omitempty"`
}

type document struct {
	Functions []*model.Definition `json:"functions"`
}

// Load reads the document. A missing file is an empty registry.
func (s *Store) Load(ctx context.Context) ([]*model.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := ctxlog.FromContext(ctx).With("path", s.path)

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("No document found, starting with an empty registry.")
		return []*model.Definition{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening '%s': %w", model.ErrSerialization, s.path, err)
	}
	defer f.Close()

	d := &decoder{dec: json.NewDecoder(bufio.NewReader(f)), logger: logger}
	defs, err := d.decode()
	if err != nil {
		logger.Warn("Document is corrupt, keeping the records read before the damage.",
			"recovered", len(defs), "skipped", d.skipped, "error", err)
		s.preserveCorrupt(ctx)
	} else if d.skipped > 0 {
		logger.Warn("Some records could not be decoded and were skipped.", "loaded", len(defs), "skipped", d.skipped)
	}

	logger.Debug("Document loaded.", "functions", len(defs))
	return defs, nil
}

// preserveCorrupt copies the damaged document next to itself. Failing to do
// so is logged and does not stop the load.
func (s *Store) preserveCorrupt(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	data, err := os.ReadFile(s.path)
	if err == nil {
		err = os.WriteFile(s.path+CorruptSuffix, data, 0o644)
	}
	if err != nil {
		logger.Error("Failed to preserve the corrupt document.", "path", s.path, "error", err)
		return
	}
	logger.Info("Corrupt document preserved.", "copy", s.path+CorruptSuffix)
}

// Save rewrites the document atomically.
func (s *Store) Save(ctx context.Context, defs []*model.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := document{Functions: make([]*model.Definition, 0, len(defs))}
	for _, d := range defs {
		doc.Functions = append(doc.Functions, normalize(d.Clone()))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding document: %w", model.ErrSerialization, err)
	}
	data = append(data, '\n')

	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: writing '%s': %w", model.ErrSerialization, s.path, err)
	}

	ctxlog.FromContext(ctx).Debug("Document saved.", "path", s.path, "functions", len(defs))
	return nil
}

func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// normalize fills the fields a record may omit.
func normalize(d *model.Definition) *model.Definition {
	if d.Parameters == nil {
		d.Parameters = []model.Parameter{}
	}
	return d
}

// decoder walks the document token by token so that one bad record, or a
// truncated tail, does not lose the records around it.
type decoder struct {
	dec     *json.Decoder
	logger  *slog.Logger
	skipped int
}

func (d *decoder) decode() ([]*model.Definition, error) {
	defs := []*model.Definition{}

	if err := d.expectDelim('{'); err != nil {
		return defs, err
	}
	for d.dec.More() {
		tok, err := d.dec.Token()
		if err != nil {
			return defs, err
		}
		key, _ := tok.(string)
		if key != functionsKey {
			var skip json.RawMessage
			if err := d.dec.Decode(&skip); err != nil {
				return defs, err
			}
			continue
		}
		if defs, err = d.decodeFunctions(defs); err != nil {
			return defs, err
		}
	}
	if err := d.expectDelim('}'); err != nil {
		return defs, err
	}
	return defs, nil
}

func (d *decoder) decodeFunctions(defs []*model.Definition) ([]*model.Definition, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return defs, err
	}
	if tok == nil {
		return defs, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return defs, fmt.Errorf("'%s' must be an array, got %v", functionsKey, tok)
	}

	for index := 0; d.dec.More(); index++ {
		var raw json.RawMessage
		if err := d.dec.Decode(&raw); err != nil {
			return defs, err
		}
		def, err := decodeRecord(raw)
		if err != nil {
			d.skipped++
			d.logger.Warn("Skipping record that could not be decoded.", "index", index, "error", err)
			continue
		}
		defs = append(defs, def)
	}
	return defs, d.expectDelim(']')
}

func decodeRecord(raw json.RawMessage) (*model.Definition, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	if rec.Source == "" && rec.Code != "" {
		rec.Source = rec.Code
	}
	def := rec.Definition
	return normalize(&def), nil
}

func (d *decoder) expectDelim(want json.Delim) error {
	tok, err := d.dec.Token()
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	if err != nil {
		return err
	}
	if got, ok := tok.(json.Delim); !ok || got != want {
		return fmt.Errorf("expected '%s', got %v", want, tok)
	}
	return nil
}

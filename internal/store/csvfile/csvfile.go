// Package csvfile stores expenses in a comma separated text file with the
// header fecha,categoria,descripcion,monto.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gastos/internal/core"
	applog "gastos/internal/log"
)

// Header is the canonical first row of the file.
var Header = []string{"fecha", "categoria", "descripcion", "monto"}

const bom = "\ufeff"

var ErrUnexpectedHeader = errors.New("unexpected header")

type Store struct {
	path string
	loc  *time.Location
}

type Option func(*Store)

// WithLocation sets the zone used to write and parse the fecha column.
// The default is the local zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func New(path string, opts ...Option) *Store {
	s := &Store{path: path, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Path() string { return s.path }

// Init creates the file with its header when it is missing or empty. An
// existing file with another header is rejected rather than rewritten.
func (s *Store) Init(ctx context.Context) error {
	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if dir := filepath.Dir(s.path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return core.NewStorageError("create directory", err)
			}
		}
		if err := s.writeNew(); err != nil {
			return core.NewStorageError("create file", err)
		}
		slog.InfoContext(ctx, "Expense file created", applog.FieldPath, s.path)
		return nil
	case err != nil:
		return core.NewStorageError("stat file", err)
	case info.IsDir():
		return core.NewStorageError("open file", fmt.Errorf("%s is a directory", s.path))
	case info.Size() == 0:
		return core.NewStorageError("write header", s.rewrite(nil))
	}

	f, err := os.Open(s.path)
	if err != nil {
		return core.NewStorageError("open file", err)
	}
	defer f.Close()
	r := newReader(f)
	head, err := r.Read()
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return core.NewStorageError("read header", fmt.Errorf("%w: %v", ErrUnexpectedHeader, pe))
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return core.NewStorageError("read header", err)
	}
	if err := checkHeader(head); err != nil {
		return core.NewStorageError("read header", err)
	}
	return nil
}

// Append writes one row at the end of the file, creating it if needed.
func (s *Store) Append(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return core.NewStorageError("open file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return core.NewStorageError("stat file", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return core.NewStorageError("write header", err)
		}
	} else if err := ensureTrailingNewline(f, info.Size()); err != nil {
		return core.NewStorageError("append row", err)
	}
	if err := w.Write(s.toRow(e)); err != nil {
		return core.NewStorageError("append row", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return core.NewStorageError("append row", err)
	}
	if err := f.Close(); err != nil {
		return core.NewStorageError("close file", err)
	}

	slog.DebugContext(ctx, "Expense appended to CSV",
		applog.FieldPath, s.path,
		applog.FieldCategory, e.Category,
		applog.FieldAmountCents, e.Amount.Cents)
	return nil
}

// List reads the whole file. A missing file reads as empty. Rows that cannot
// be parsed are logged and skipped.
func (s *Store) List(ctx context.Context) ([]core.Expense, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []core.Expense{}, nil
	}
	if err != nil {
		return nil, core.NewStorageError("open file", err)
	}
	defer f.Close()

	r := newReader(f)
	out := []core.Expense{}
	first := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			if first {
				return nil, core.NewStorageError("read header", fmt.Errorf("%w: %v", ErrUnexpectedHeader, pe))
			}
			slog.WarnContext(ctx, "Skipping malformed expense row",
				applog.FieldPath, s.path, "line", pe.StartLine, applog.FieldError, pe.Err)
			continue
		}
		if err != nil {
			return nil, core.NewStorageError("read file", err)
		}
		if first {
			first = false
			if err := checkHeader(row); err != nil {
				return nil, core.NewStorageError("read header", err)
			}
			continue
		}
		if isBlank(row) {
			continue
		}
		e, err := s.parseRow(row)
		if err != nil {
			line, _ := r.FieldPos(0)
			slog.WarnContext(ctx, "Skipping malformed expense row",
				applog.FieldPath, s.path, "line", line, applog.FieldError, err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Persist rewrites the whole file through a temporary file in the same
// directory, so a failed write leaves the previous content in place.
func (s *Store) Persist(ctx context.Context, expenses []core.Expense) error {
	if err := s.rewrite(expenses); err != nil {
		return core.NewStorageError("rewrite file", err)
	}
	slog.DebugContext(ctx, "Expense file rewritten", applog.FieldPath, s.path, applog.FieldCount, len(expenses))
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) writeNew() error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Store) rewrite(expenses []core.Expense) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".gastos-*.csv")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		tmp.Close()
		return err
	}
	for _, e := range expenses {
		if err := w.Write(s.toRow(e)); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

func (s *Store) toRow(e core.Expense) []string {
	return []string{
		e.Timestamp.In(s.loc).Format(core.TimestampLayout),
		strings.TrimSpace(e.Category),
		strings.TrimSpace(e.Description),
		e.Amount.String(),
	}
}

func (s *Store) parseRow(row []string) (core.Expense, error) {
	if len(row) != len(Header) {
		return core.Expense{}, fmt.Errorf("expected %d fields, got %d", len(Header), len(row))
	}
	ts, err := time.ParseInLocation(core.TimestampLayout, strings.TrimSpace(row[0]), s.loc)
	if err != nil {
		return core.Expense{}, fmt.Errorf("invalid fecha %q", row[0])
	}
	amount, err := core.ParseAmount(row[3])
	if err != nil {
		return core.Expense{}, fmt.Errorf("invalid monto %q: %w", row[3], err)
	}
	e := core.NewExpense(ts, row[1], row[2], amount)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return cr
}

func checkHeader(row []string) error {
	if len(row) == 0 {
		return nil
	}
	if len(row) != len(Header) {
		return fmt.Errorf("%w: %s", ErrUnexpectedHeader, strings.Join(row, ","))
	}
	for i, col := range row {
		if i == 0 {
			col = strings.TrimPrefix(col, bom)
		}
		if !strings.EqualFold(strings.TrimSpace(col), Header[i]) {
			return fmt.Errorf("%w: %s", ErrUnexpectedHeader, strings.Join(row, ","))
		}
	}
	return nil
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func ensureTrailingNewline(f *os.File, size int64) error {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err := f.Write([]byte("\n"))
	return err
}

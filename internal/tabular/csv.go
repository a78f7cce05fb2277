package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ReadTable loads a CSV or XLSX file (chosen by extension). CSV text is
// decoded with d.
func ReadTable(path string, d *Decoder) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path, XLSXOptions{})
	}
	return ReadCSV(path, d)
}

// ReadCSV loads a CSV file with a header row.
func ReadCSV(path string, d *Decoder) (*Table, error) {
	data, enc, err := d.ReadFile(path)
	if err != nil {
		return nil, err
	}

	records, err := parseCSV(data)
	if err != nil {
		return nil, eris.Wrapf(ErrUnreadable, "tabular: parse %s: %v", path, err)
	}
	if len(records) == 0 {
		return nil, eris.Wrapf(ErrUnreadable, "tabular: %s has no header row", path)
	}

	zap.L().Debug("tabular: loaded csv",
		zap.String("path", path),
		zap.String("encoding", enc),
		zap.Int("rows", len(records)-1),
	)

	return NewTable(path, records[0], records[1:]), nil
}

func parseCSV(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields
	return reader.ReadAll()
}

// AppendCSV appends rows to path, writing header first only when the file
// does not exist yet.
func AppendCSV(path string, header []string, rows [][]string) error {
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return eris.Wrapf(statErr, "tabular: stat %s", path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "tabular: open %s for append", path)
	}

	w := csv.NewWriter(f)
	if !exists {
		if err := w.Write(header); err != nil {
			_ = f.Close()
			return eris.Wrap(err, "tabular: write header")
		}
	}
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "tabular: write rows")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "tabular: sync %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "tabular: close %s", path)
	}
	return nil
}

// WriteCSVAtomic replaces path with header+rows. The content is written to a
// temporary file in the same directory and renamed over path, so readers see
// either the old or the new table, never a partial one.
func WriteCSVAtomic(path string, header []string, rows [][]string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "tabular: create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if err := writeCSV(tmp, header, rows); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return eris.Wrapf(err, "tabular: sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "tabular: close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "tabular: rename onto %s", path)
	}
	return nil
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "tabular: write header")
	}
	if err := cw.WriteAll(rows); err != nil {
		return eris.Wrap(err, "tabular: write rows")
	}
	return nil
}

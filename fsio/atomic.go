// Package fsio implements component C9: temp-file + fsync + checksum +
// rename atomic writes, and the CSV/Parquet output encoders behind a
// shared Encoder interface (spec §6.4/§6.5).
package fsio

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"gaplessohlcv/bars"
)

// Encoder renders a bar table into bytes for one output format.
type Encoder interface {
	Encode(symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, rows []bars.Bar) ([]byte, error)
}

// WriteAtomic implements write_atomic(path, rows): it writes content to
// path.tmp.<uuid> in the same directory, fsyncs, computes a SHA-256
// checksum, and renames over path only if the checksum round-trips
// cleanly. A crash at any point before the rename leaves path untouched;
// the tmp file is never renamed on a checksum mismatch, left in place for
// forensic inspection.
func WriteAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmpPath := fmt.Sprintf("%s.tmp.%s", path, uuid.NewString())

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("fsio: create temp file: %w", err)
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("fsio: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsio: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("fsio: close temp file: %w", err)
	}

	wantSum := sha256.Sum256(content)
	gotBytes, err := os.ReadFile(tmpPath)
	if err != nil {
		return fmt.Errorf("fsio: reread temp file: %w", err)
	}
	gotSum := sha256.Sum256(gotBytes)
	if hex.EncodeToString(wantSum[:]) != hex.EncodeToString(gotSum[:]) {
		return fmt.Errorf("fsio: checksum mismatch, leaving %s for inspection", tmpPath)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("fsio: rename into place: %w", err)
	}

	dirHandle, err := os.Open(dir)
	if err == nil {
		_ = dirHandle.Sync() // best-effort: fsync the directory entry too
		_ = dirHandle.Close()
	}
	return nil
}

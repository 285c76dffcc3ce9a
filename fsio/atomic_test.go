package fsio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gaplessohlcv/bars"
)

func TestWriteAtomic_CreatesFileWithContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	require.NoError(t, WriteAtomic(path, []byte("hello")))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	// no leftover tmp files after a clean write
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestWriteAtomic_PreExistingFileUnchangedIfRenameNeverHappens simulates the
// "crash between write and rename" scenario from invariant 7: if the
// rename step is never reached, the previous file must be byte-identical
// to its pre-call state.
func TestWriteAtomic_PreExistingFileUnchangedIfRenameNeverHappens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	// WriteAtomic itself is not called: a tmp file is written beside the
	// target the way WriteAtomic names it, and os.Rename is never reached,
	// standing in for a process kill before the rename syscall.
	tmpPath := path + ".tmp.simulated-crash"
	require.NoError(t, os.WriteFile(tmpPath, []byte("new content"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "original", string(got))
}

func TestCSVEncoder_ProducesHeaderAndMetadataComments(t *testing.T) {
	enc := CSVEncoder{GeneratedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	out, err := enc.Encode("BTCUSDT", bars.TF1h, bars.InstrumentSpot, nil)
	require.NoError(t, err)

	text := string(out)
	require.True(t, strings.HasPrefix(text, "# symbol=BTCUSDT\n"))
	require.Contains(t, text, "timestamp,close_time,symbol")
	require.False(t, strings.Contains(text, "\r\n"))
}

func TestParquetEncoder_ReturnsConfigError(t *testing.T) {
	_, err := ParquetEncoder{}.Encode("BTCUSDT", bars.TF1h, bars.InstrumentSpot, nil)
	require.Error(t, err)
}

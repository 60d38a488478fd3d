package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatReplacesLineBreaks(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "__label__zakat bayar zakat fitrah sekarang", Format("zakat", " bayar\nzakat\r\nfitrah\rsekarang "))
}

func TestWriterTruncatesWithoutResume(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "train.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("__label__old stale line\n"), 0o600))

	w, err := Open(path, false)
	require.NoError(t, err)
	require.NoError(t, w.Write("tabungan", "Menabung setiap bulan itu penting."))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "__label__tabungan Menabung setiap bulan itu penting.\n", string(data))
}

func TestWriterAppendsOnResume(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "train.txt")

	w, err := Open(path, false)
	require.NoError(t, err)
	require.NoError(t, w.Write("zakat", "satu"))
	require.NoError(t, w.Close())

	w, err = Open(path, true)
	require.NoError(t, err)
	require.NoError(t, w.Write("donasi", "dua\ntiga"))
	assert.Equal(t, 1, w.Lines())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "__label__zakat satu\n__label__donasi dua tiga\n", string(data))
}

func TestWriterRejectsEmptyLines(t *testing.T) {
	t.Parallel()

	w, err := Open(filepath.Join(t.TempDir(), "t.txt"), false)
	require.NoError(t, err)
	defer w.Close() //nolint:errcheck // test cleanup

	require.ErrorIs(t, w.Write("", "text"), ErrEmptyLine)
	require.ErrorIs(t, w.Write("zakat", " \n "), ErrEmptyLine)
	assert.Equal(t, 0, w.Lines())
}

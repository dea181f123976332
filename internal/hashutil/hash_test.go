package hashutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHashFormat(t *testing.T) {
	h := ComputeHashString("hello world")
	assert.True(t, IsValidHashFormat(h))
	assert.Equal(t, "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", h)
}

func TestComputeHashDeterministic(t *testing.T) {
	a := ComputeHash([]byte("same input"))
	b := ComputeHash([]byte("same input"))
	assert.Equal(t, a, b)
}

func TestHashFileStreamsLargeInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.bin")

	data := make([]byte, streamBufferSize*3+17)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, ComputeHash(data), got)
	assert.True(t, IsValidHashFormat(got))
}

func TestHashFileMissing(t *testing.T) {
	_, err := HashFile("/nonexistent/path/to/file")
	assert.Error(t, err)
}

func TestIsValidHashFormat(t *testing.T) {
	cases := map[string]bool{
		"sha256:" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef": true,
		"sha256:0123456789ABCDEF0123456789abcdef0123456789abcdef0123456789abcdef":   false, // uppercase
		"sha256:abc":               false,
		"md5:0123456789abcdef":     false,
		"":                          false,
	}
	for in, want := range cases {
		assert.Equalf(t, want, IsValidHashFormat(in), "input %q", in)
	}
}

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLeaseAcquireAndRelease(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corpus.db")
	l := newWriterLease(dbPath)

	acquired, err := l.tryAcquire()
	require.NoError(t, err)
	assert.True(t, acquired)

	require.NoError(t, l.release())
}

func TestWriterLeaseRejectsSecondHolder(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corpus.db")

	first := newWriterLease(dbPath)
	acquired, err := first.tryAcquire()
	require.NoError(t, err)
	require.True(t, acquired)
	defer func() { _ = first.release() }()

	second := newWriterLease(dbPath)
	acquired, err = second.tryAcquire()
	require.NoError(t, err)
	assert.False(t, acquired, "a second lease on the same db path must not be granted while the first is held")
}

func TestWriterLeaseReleaseIsSafeWhenNotHeld(t *testing.T) {
	l := newWriterLease(filepath.Join(t.TempDir(), "corpus.db"))
	assert.NoError(t, l.release())
}

func TestWriterLeaseReacquirableAfterRelease(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corpus.db")

	first := newWriterLease(dbPath)
	acquired, err := first.tryAcquire()
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, first.release())

	second := newWriterLease(dbPath)
	acquired, err = second.tryAcquire()
	require.NoError(t, err)
	assert.True(t, acquired)
	_ = second.release()
}

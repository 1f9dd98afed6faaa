package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countBackups counts rotated siblings of the given live log file, e.g.
// cfme-2026-08-25T10-30-45.000.log next to cfme.log.
func countBackups(path string) int {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + "-"

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		return 0
	}

	count := 0
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) && strings.HasSuffix(entry.Name(), ext) {
			count++
		}
	}
	return count
}

func fillSink(t *testing.T, s *fileSink, total int) {
	t.Helper()
	chunk := append(bytes.Repeat([]byte("x"), 1023), '\n')
	for written := 0; written < total; written += len(chunk) {
		_, err := s.Write(chunk)
		require.NoError(t, err)
	}
}

func TestBytesToMegabytes(t *testing.T) {
	const megabyte = 1024 * 1024
	for give, want := range map[int64]int{
		0:               1,
		1:               1,
		megabyte:        1,
		megabyte + 1:    2,
		10 * megabyte:   10,
		10*megabyte - 1: 10,
	} {
		assert.Equal(t, want, bytesToMegabytes(give), "bytesToMegabytes(%d)", give)
	}
}

func TestFileSink_PlainAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfme.log")

	s, err := newFileSink(path, 0, 3)
	require.NoError(t, err)

	// No size cap means no rotation machinery and an eagerly created file.
	assert.Nil(t, s.rolling)
	assert.NotNil(t, s.plain)
	assert.False(t, s.sweep)
	require.FileExists(t, path)

	_, err = s.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = s.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Write([]byte("lost\n"))
	require.Error(t, err)

	// Reopening the same path appends instead of truncating.
	s2, err := newFileSink(path, 0, 0)
	require.NoError(t, err)
	_, err = s2.Write([]byte("third\n"))
	require.NoError(t, err)
	require.NoError(t, s2.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\nthird\n", string(data))
}

func TestFileSink_RotationRetainsConfiguredBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfme.log")

	s, err := newFileSink(path, 1<<20, 1)
	require.NoError(t, err)
	defer s.Close()

	require.NotNil(t, s.rolling)
	assert.Equal(t, 1, s.rolling.MaxSize)
	assert.Equal(t, 1, s.rolling.MaxBackups)
	assert.False(t, s.sweep)

	// Two and a half times the cap forces at least two rotations; the
	// prune down to one backup runs asynchronously.
	fillSink(t, s, 2*(1<<20)+(1<<19))

	require.FileExists(t, path)
	require.Eventually(t, func() bool {
		return countBackups(path) == 1
	}, 3*time.Second, 25*time.Millisecond)
}

func TestFileSink_ZeroBackupsSweepsEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfme.log")

	s, err := newFileSink(path, 1<<20, 0)
	require.NoError(t, err)

	require.NotNil(t, s.rolling)
	assert.True(t, s.sweep)
	// The mill keeps one backup around, the sweep deletes that one too.
	assert.Equal(t, 1, s.rolling.MaxBackups)

	fillSink(t, s, 2*(1<<20)+(1<<19))

	// Close runs a final sweep, so no backups survive it.
	require.NoError(t, s.Close())
	assert.Equal(t, 0, countBackups(path))
	assert.FileExists(t, path)
}

func TestFileSink_RemoveBackupsLeavesSiblingsAlone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfme.log")

	s, err := newFileSink(path, 1<<20, 0)
	require.NoError(t, err)
	defer s.Close()

	stamp := time.Now().Format(lumberjackTimeFormat)
	owned := filepath.Join(dir, "cfme-"+stamp+".log")
	malformed := filepath.Join(dir, "cfme-not-a-timestamp.log")
	sibling := filepath.Join(dir, "wrapanapi-"+stamp+".log")
	for _, name := range []string{owned, malformed, sibling} {
		require.NoError(t, os.WriteFile(name, []byte("rotated\n"), 0o644))
	}

	s.removeBackups()

	assert.NoFileExists(t, owned)
	assert.FileExists(t, malformed)
	assert.FileExists(t, sibling)
}

func TestFileSink_Rebind(t *testing.T) {
	t.Run("plain sink moves to the new path", func(t *testing.T) {
		dir := t.TempDir()
		first := filepath.Join(dir, "cfme.log")
		second := filepath.Join(dir, "w1-cfme.log")

		s, err := newFileSink(first, 0, 0)
		require.NoError(t, err)
		defer s.Close()

		_, err = s.Write([]byte("before\n"))
		require.NoError(t, err)

		require.NoError(t, s.rebind(second))
		assert.Equal(t, second, s.currentPath())

		_, err = s.Write([]byte("after\n"))
		require.NoError(t, err)

		firstData, err := os.ReadFile(first)
		require.NoError(t, err)
		assert.Equal(t, "before\n", string(firstData))

		secondData, err := os.ReadFile(second)
		require.NoError(t, err)
		assert.Equal(t, "after\n", string(secondData))
	})

	t.Run("rolling sink keeps its rotation settings", func(t *testing.T) {
		dir := t.TempDir()
		s, err := newFileSink(filepath.Join(dir, "cfme.log"), 5<<20, 2)
		require.NoError(t, err)
		defer s.Close()

		require.NoError(t, s.rebind(filepath.Join(dir, "w1-cfme.log")))

		require.NotNil(t, s.rolling)
		assert.Equal(t, filepath.Join(dir, "w1-cfme.log"), s.rolling.Filename)
		assert.Equal(t, 5, s.rolling.MaxSize)
		assert.Equal(t, 2, s.rolling.MaxBackups)
	})
}

func TestFileSink_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfme.log")

	s, err := newFileSink(path, 0, 0)
	require.NoError(t, err)

	const goroutines = 20
	const perGoroutine = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_, werr := s.Write([]byte("concurrent line\n"))
				assert.NoError(t, werr)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, goroutines*perGoroutine, bytes.Count(data, []byte{'\n'}))
}

package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"gopkg.in/natefinch/lumberjack.v2"
)

// lumberjackTimeFormat is the timestamp embedded in rotated backup names.
const lumberjackTimeFormat = "2006-01-02T15-04-05.000"

const sweepInterval = 100 * time.Millisecond

// fileSink owns the on-disk destination of one logger. Rotation is delegated
// to lumberjack when a size cap is configured; a zero cap opens a plain
// append-only file. A sink may be shared by several loggers, and rebind
// atomically redirects all of them to a new path.
type fileSink struct {
	mu      sync.RWMutex
	path    string
	rolling *lumberjack.Logger
	plain   *os.File

	maxBytes int64
	backups  int

	// sweep marks rotation with zero retained backups. lumberjack keeps at
	// least one rotated file around, so the sink deletes backups itself.
	sweep     bool
	lastSweep atomic.Int64
}

func newFileSink(path string, maxBytes int64, backups int) (*fileSink, error) {
	s := &fileSink{
		path:     path,
		maxBytes: maxBytes,
		backups:  backups,
		sweep:    maxBytes > 0 && backups == 0,
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileSink) open() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "creating log directory")
	}

	if s.maxBytes == 0 {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrap(err, "opening log file")
		}
		s.plain = f
		return nil
	}

	retained := s.backups
	if s.sweep {
		// Let the lumberjack mill prune down to one backup, the sweep
		// removes that last one.
		retained = 1
	}
	s.rolling = &lumberjack.Logger{
		Filename:   s.path,
		MaxSize:    bytesToMegabytes(s.maxBytes),
		MaxBackups: retained,
	}
	return nil
}

func (s *fileSink) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.rolling != nil {
		n, err := s.rolling.Write(p)
		if s.sweep {
			s.maybeSweep()
		}
		return n, err
	}
	if s.plain == nil {
		return 0, errors.New("log sink is closed")
	}
	return s.plain.Write(p)
}

// rebind redirects the sink to a new path. The previous file is closed and
// left in place; subsequent records land in the new file.
func (s *fileSink) rebind(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeCurrent(); err != nil {
		return err
	}
	s.path = path
	return s.open()
}

func (s *fileSink) currentPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.closeCurrent()
	if s.sweep {
		s.removeBackups()
	}
	return err
}

func (s *fileSink) closeCurrent() error {
	var err error
	if s.rolling != nil {
		err = s.rolling.Close()
		s.rolling = nil
	}
	if s.plain != nil {
		err = s.plain.Close()
		s.plain = nil
	}
	return err
}

// maybeSweep rate-limits backup removal so the directory scan does not run
// on every write.
func (s *fileSink) maybeSweep() {
	now := time.Now().UnixNano()
	last := s.lastSweep.Load()
	if now-last < int64(sweepInterval) {
		return
	}
	if !s.lastSweep.CompareAndSwap(last, now) {
		return
	}
	s.removeBackups()
}

// removeBackups deletes rotated files belonging to this sink. A backup is
// recognized by the live file's name with a rotation timestamp spliced in
// front of the extension, which keeps sibling logs safe.
func (s *fileSink) removeBackups() {
	dir := filepath.Dir(s.path)
	base := filepath.Base(s.path)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + "-"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext)
		if _, perr := time.Parse(lumberjackTimeFormat, stamp); perr != nil {
			continue
		}
		_ = os.Remove(filepath.Join(dir, name))
	}
}

func bytesToMegabytes(n int64) int {
	const megabyte = 1024 * 1024
	mb := (n + megabyte - 1) / megabyte
	if mb < 1 {
		mb = 1
	}
	return int(mb)
}

var _ io.WriteCloser = (*fileSink)(nil)

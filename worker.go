package logging

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// SetupForWorker moves the named loggers onto worker-scoped files named
// <workerID>-<file> and turns on the "(<workerID>) " message prefix and the
// artifact worker tag. With no names it covers cfme, py.warnings and
// wrapanapi. A sink shared by several named loggers is rebound exactly
// once. SetupForWorker must run once per process, before substantial
// logging; a second call errors.
func (s *Service) SetupForWorker(workerID string, names ...string) error {
	if s == nil {
		return errors.New(errMsgNilService)
	}
	if !s.isInitialized.Load() {
		return errors.New(errMsgNotInitialized)
	}
	workerID = strings.TrimSpace(workerID)
	if workerID == emptyString {
		return errors.New("worker id is empty")
	}
	if !s.workerSet.CompareAndSwap(false, true) {
		return errors.New(errMsgWorkerConfigured)
	}

	if len(names) == 0 {
		names = []string{DefaultLoggerName, WarningsLoggerName, WrapanapiLoggerName}
	}

	s.mu.Lock()
	cores := make([]*loggerCore, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		core, ok := s.registry[name]
		if !ok {
			s.mu.Unlock()
			// Nothing was touched yet, the next attempt may still succeed.
			s.workerSet.Store(false)
			return errors.Errorf("%s: %q", errMsgUnknownLogger, name)
		}
		cores = append(cores, core)
	}

	var firstErr error
	rebound := make(map[*fileSink]struct{}, len(cores))
	for _, core := range cores {
		if _, done := rebound[core.sink]; done {
			continue
		}
		rebound[core.sink] = struct{}{}

		dir, base := filepath.Split(core.sink.currentPath())
		if err := core.sink.rebind(filepath.Join(dir, workerID+"-"+base)); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "moving log of %q", core.name)
		}
	}
	s.mu.Unlock()
	if firstErr != nil {
		return firstErr
	}

	s.workerID.Store(workerID)
	s.workerPrefix.Store("(" + workerID + ") ")

	for _, raw := range names {
		s.handle(strings.TrimSpace(raw)).Debug("worker log started")
	}
	return nil
}

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Service is the logging facility. Configure the exported fields, call
// Initialize, log through the returned handles, and Close on the way out.
// All methods are safe for concurrent use and nil-safe: an uninitialized or
// nil Service hands out inert loggers instead of panicking.
type Service struct {
	// WorkingDir anchors the log directory. Required.
	WorkingDir string
	// EnvDir is where env.yaml and env.local.yaml are looked up. Defaults
	// to WorkingDir.
	EnvDir string
	// RelLogDir is the log directory relative to WorkingDir, default "log".
	RelLogDir string
	// Collector, when set, receives every record as a log_message hook.
	Collector ArtifactCollector

	env    *envConfig
	logDir string

	mu            sync.RWMutex
	isInitialized atomic.Bool
	wg            sync.WaitGroup
	activeOps     atomic.Int32

	registry map[string]*loggerCore

	workerID     atomic.String
	workerPrefix atomic.String
	workerSet    atomic.Bool

	collector atomic.Pointer[collectorBox]

	shutdownTimeout time.Duration

	perf   *Perflog
	warner *Warner

	crashMu        sync.Mutex
	crashObservers []CrashObserver
}

func NewService(workingDir string) *Service {
	return &Service{WorkingDir: workingDir}
}

// Initialize loads the environment configuration, creates the log directory
// and sets up the guaranteed loggers: cfme, wrapanapi (sharing cfme's file),
// py.warnings and perf. Calling Initialize on an initialized Service is a
// no-op.
func (s *Service) Initialize() error {
	if s == nil {
		return errors.New(errMsgNilService)
	}
	if s.isInitialized.Load() {
		return nil
	}
	if s.WorkingDir == emptyString {
		return errors.New(errMsgNoWorkingDir)
	}

	relDir := s.RelLogDir
	if relDir == emptyString {
		relDir = defaultRelLogDir
	}
	if filepath.IsAbs(relDir) {
		return errors.New(errMsgRelLogDir)
	}

	envDir := s.EnvDir
	if envDir == emptyString {
		envDir = s.WorkingDir
	}
	env, err := loadEnvConfig(envDir)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.env = env
	s.shutdownTimeout = env.shutdownTimeout()
	s.logDir = filepath.Join(s.WorkingDir, relDir)
	if err := os.MkdirAll(s.logDir, 0o755); err != nil {
		return errors.Wrap(err, "creating log directory")
	}

	s.registry = make(map[string]*loggerCore, 8)
	s.collector.Store(&collectorBox{collector: s.Collector})

	root, err := s.setupLocked(DefaultLoggerName, nil)
	if err != nil {
		s.closeSinksLocked()
		return err
	}
	if _, err := s.setupLocked(WrapanapiLoggerName, root.sink); err != nil {
		s.closeSinksLocked()
		return err
	}
	warnCore, err := s.setupLocked(WarningsLoggerName, nil)
	if err != nil {
		s.closeSinksLocked()
		return err
	}
	perfCore, err := s.setupLocked(PerfLoggerName, nil)
	if err != nil {
		s.closeSinksLocked()
		return err
	}

	s.perf = newPerflog(&Logger{core: perfCore})
	s.warner = newWarner(&Logger{core: warnCore})

	s.isInitialized.Store(true)
	return nil
}

// closeSinksLocked closes every registered sink once, shared sinks
// included. Callers hold s.mu.
func (s *Service) closeSinksLocked() error {
	var firstErr error
	seen := make(map[*fileSink]struct{}, len(s.registry))
	for _, core := range s.registry {
		if _, ok := seen[core.sink]; ok {
			continue
		}
		seen[core.sink] = struct{}{}
		if err := core.sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// setupLocked resolves the configuration for name and builds its logger
// core. A non-nil shared sink makes the logger write into another logger's
// file instead of opening its own; the sharing logger's rotation settings
// do not apply, the sink owner's do. Callers hold s.mu.
func (s *Service) setupLocked(name string, shared *fileSink) (*loggerCore, error) {
	if core, ok := s.registry[name]; ok {
		return core, nil
	}

	base := defaultLoggerConfig()
	if name == WarningsLoggerName {
		// Captured warnings additionally reach the console from info up,
		// unless the configuration says otherwise.
		base.ToConsole = "info"
	}
	cfg, err := s.env.resolve(name, base)
	if err != nil {
		return nil, err
	}
	if err := validateLoggerConfig(cfg); err != nil {
		return nil, errors.Wrapf(err, "logger %q", name)
	}
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "logger %q", name)
	}

	fileTpl, err := compileTemplate(cfg.FileFormat)
	if err != nil {
		return nil, errors.Wrapf(err, "file_format for %q", name)
	}
	streamTpl, err := compileTemplate(cfg.StreamFormat)
	if err != nil {
		return nil, errors.Wrapf(err, "stream_format for %q", name)
	}

	sink := shared
	if sink == nil {
		path := filepath.Join(s.logDir, name+logFileExt)
		sink, err = newFileSink(path, cfg.MaxLogfileSize, cfg.MaxLogfileBackups)
		if err != nil {
			return nil, errors.Wrapf(err, "logger %q", name)
		}
	}

	writers := []io.Writer{newFormatWriter(sink, fileTpl, cfg.TimeFormat)}
	if cfg.ToConsole != emptyString {
		floor, ferr := parseLevel(cfg.ToConsole)
		if ferr != nil {
			return nil, errors.Wrapf(ferr, "to_console for %q", name)
		}
		writers = append(writers, minLevelWriter{
			w:   newFormatWriter(os.Stderr, streamTpl, cfg.TimeFormat),
			min: floor,
		})
	}
	if cfg.ErrorsToConsole {
		writers = append(writers, minLevelWriter{
			w:   newFormatWriter(os.Stderr, streamTpl, cfg.TimeFormat),
			min: zerolog.ErrorLevel,
		})
	}
	writers = append(writers, newArtifactWriter(&s.collector, &s.workerID))

	core := &loggerCore{
		name:       name,
		svc:        s,
		level:      level,
		sink:       sink,
		cfg:        *cfg,
		writers:    writers,
		streamTpl:  streamTpl,
		timeLayout: cfg.TimeFormat,
	}
	core.install(writers)
	s.registry[name] = core
	return core, nil
}

// Logger returns the handle for name, setting the logger up on first use.
// Repeated calls return the same underlying logger, so no destination is
// ever attached twice.
func (s *Service) Logger(name string) (*Logger, error) {
	if s == nil {
		return nil, errors.New(errMsgNilService)
	}
	if !s.isInitialized.Load() {
		return nil, errors.New(errMsgNotInitialized)
	}
	name = strings.TrimSpace(name)
	if name == emptyString {
		return nil, errors.New(errMsgEmptyLoggerName)
	}
	if isReservedLoggerName(name) {
		return nil, errors.Errorf("%s: %q", errMsgReservedName, name)
	}

	s.mu.RLock()
	core, ok := s.registry[name]
	s.mu.RUnlock()
	if ok {
		return &Logger{core: core}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isInitialized.Load() {
		return nil, errors.New(errMsgNotInitialized)
	}
	core, err := s.setupLocked(name, nil)
	if err != nil {
		return nil, err
	}
	return &Logger{core: core}, nil
}

// SharedLogger sets up name writing into shareWith's file. shareWith must
// already be set up. If name already exists its current sink is kept.
func (s *Service) SharedLogger(name, shareWith string) (*Logger, error) {
	if s == nil {
		return nil, errors.New(errMsgNilService)
	}
	if !s.isInitialized.Load() {
		return nil, errors.New(errMsgNotInitialized)
	}
	name = strings.TrimSpace(name)
	if name == emptyString {
		return nil, errors.New(errMsgEmptyLoggerName)
	}
	if isReservedLoggerName(name) {
		return nil, errors.Errorf("%s: %q", errMsgReservedName, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isInitialized.Load() {
		return nil, errors.New(errMsgNotInitialized)
	}
	owner, ok := s.registry[strings.TrimSpace(shareWith)]
	if !ok {
		return nil, errors.Errorf("%s: %q", errMsgUnknownLogger, shareWith)
	}
	if core, ok := s.registry[name]; ok {
		return &Logger{core: core}, nil
	}
	core, err := s.setupLocked(name, owner.sink)
	if err != nil {
		return nil, err
	}
	return &Logger{core: core}, nil
}

func (s *Service) handle(name string) *Logger {
	if s == nil || !s.isInitialized.Load() {
		return &Logger{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	core, ok := s.registry[name]
	if !ok {
		return &Logger{}
	}
	return &Logger{core: core}
}

// Default returns the suite-wide cfme logger.
func (s *Service) Default() *Logger {
	return s.handle(DefaultLoggerName)
}

// Perf returns the performance timer bound to the perf logger.
func (s *Service) Perf() *Perflog {
	if s == nil {
		return &Perflog{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.perf == nil {
		return &Perflog{}
	}
	return s.perf
}

// Warnings returns the deduplicating warning reporter bound to the
// py.warnings logger.
func (s *Service) Warnings() *Warner {
	if s == nil {
		return &Warner{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.warner == nil {
		return &Warner{}
	}
	return s.warner
}

// SetCollector rebinds the artifact collector at runtime. Passing nil
// detaches it.
func (s *Service) SetCollector(c ArtifactCollector) {
	if s == nil {
		return
	}
	s.collector.Store(&collectorBox{collector: c})
}

// WorkerID reports the worker identity set by SetupForWorker, empty before.
func (s *Service) WorkerID() string {
	if s == nil {
		return emptyString
	}
	return s.workerID.Load()
}

// LogDir reports the absolute log directory. Empty before Initialize.
func (s *Service) LogDir() string {
	if s == nil {
		return emptyString
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logDir
}

// ActiveOperations reports the number of in-flight emissions.
func (s *Service) ActiveOperations() int {
	if s == nil {
		return 0
	}
	return int(s.activeOps.Load())
}

// Close stops new emissions, waits up to the configured shutdown timeout
// for in-flight ones to drain and closes every file sink. It's safe to call
// Close multiple times.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	if !s.isInitialized.CompareAndSwap(true, false) {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.shutdownTimeout):
		fmt.Fprintf(os.Stderr, "logging: shutdown timeout exceeded, %d operations still in flight\n",
			s.activeOps.Load())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeSinksLocked()
}

// Emitter delegation to the default logger.

func (s *Service) TraceWith() LogEvent {
	return s.Default().TraceWith()
}

func (s *Service) DebugWith() LogEvent {
	return s.Default().DebugWith()
}

func (s *Service) InfoWith() LogEvent {
	return s.Default().InfoWith()
}

func (s *Service) WarningWith() LogEvent {
	return s.Default().WarningWith()
}

func (s *Service) ErrorWith() LogEvent {
	return s.Default().ErrorWith()
}

func (s *Service) CriticalWith() LogEvent {
	return s.Default().CriticalWith()
}

var _ Emitter = (*Service)(nil)

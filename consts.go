package logging

const (
	// DefaultLoggerName is the name of the suite-wide logger guaranteed to
	// exist after Initialize. Its records end up in log/cfme.log.
	DefaultLoggerName = "cfme"
	// WrapanapiLoggerName is the provider-API logger. It shares the default
	// logger's file so both streams interleave in one place.
	WrapanapiLoggerName = "wrapanapi"
	// WarningsLoggerName receives captured warnings. The name keeps the
	// historical py.warnings log filename.
	WarningsLoggerName = "py.warnings"
	// PerfLoggerName receives performance timer entries (log/perf.log).
	PerfLoggerName = "perf"

	defaultRelLogDir = "log"
	logFileExt       = ".log"

	envConfigName      = "env"
	envLocalConfigName = "env.local"
	loggingSection     = "logging"

	emptyString = ""
)

// Wire field names of an emitted record. The format writer and the artifact
// writer resolve records by these keys.
const (
	fieldTime       = "time"
	fieldLevel      = "level"
	fieldLogger     = "logger"
	fieldMessage    = "message"
	fieldSourceFile = "source_file"
	fieldSourceLine = "source_lineno"
)

const (
	defaultLevel        = "info"
	defaultFileFormat   = "{time} [{level.1}] [{logger}] {message} ({source})"
	defaultStreamFormat = "[{level}] [{logger}] {message} ({source})"
	defaultTimeFormat   = "2006-01-02 15:04:05,000"

	// wireTimeFormat is the timestamp layout records carry internally,
	// before the configured time_format is applied on render.
	wireTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

	defaultShutdownTimeoutMS = 1000

	artifactHookName = "log_message"

	markerLen = 80
)

const (
	errMsgNilService       = "logging service is nil"
	errMsgNotInitialized   = "logging service is not initialized"
	errMsgNoWorkingDir     = "working dir has not been set"
	errMsgRelLogDir        = "RelLogDir must be a relative path"
	errMsgEmptyLoggerName  = "logger name is empty"
	errMsgReservedName     = "logger name collides with a configuration key"
	errMsgNilConfig        = "logger configuration is nil"
	errMsgConfigInvalid    = "resolved logger configuration is invalid"
	errMsgWorkerConfigured = "worker identity already configured"
	errMsgUnknownLogger    = "logger has not been set up"
)

package logging

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// LoggerConfig is the resolved configuration of one named logger. It is
// computed at setup time by overlaying the hard defaults with the global
// "logging" section of env.yaml and then with the section keyed by the
// logger's own name, most specific last.
type LoggerConfig struct {
	// Level is the minimum emission severity (trace, debug, info, warning,
	// error, critical).
	Level string `validate:"required"`
	// MaxLogfileSize caps the log file size in bytes before rotation.
	// Zero disables rotation and backup retention entirely.
	MaxLogfileSize int64 `validate:"gte=0"`
	// MaxLogfileBackups bounds how many rotated files are retained, oldest
	// evicted first. Zero keeps none.
	MaxLogfileBackups int `validate:"gte=0"`
	// ErrorsToConsole mirrors error-and-above records to stderr.
	ErrorsToConsole bool
	// ToConsole mirrors records to stderr from the named level upward.
	// Empty disables the mirror; a bare boolean true in the configuration
	// file mirrors everything.
	ToConsole string
	// FileFormat and StreamFormat are render templates, see package docs.
	FileFormat   string `validate:"required"`
	StreamFormat string `validate:"required"`
	// TimeFormat is the time.Layout applied to the {time} placeholder.
	TimeFormat string `validate:"required"`
}

func defaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:        defaultLevel,
		FileFormat:   defaultFileFormat,
		StreamFormat: defaultStreamFormat,
		TimeFormat:   defaultTimeFormat,
	}
}

// Configuration keys recognized inside the logging section. A logger must
// not be named after one of these, or per-logger resolution would read the
// scalar where it expects a nested mapping.
var reservedLoggerNames = map[string]struct{}{
	"level":               {},
	"max_logfile_size":    {},
	"max_logfile_backups": {},
	"errors_to_console":   {},
	"to_console":          {},
	"file_format":         {},
	"stream_format":       {},
	"time_format":         {},
	"shutdown_timeout_ms": {},
}

func isReservedLoggerName(name string) bool {
	_, ok := reservedLoggerNames[strings.ToLower(name)]
	return ok
}

// envConfig holds the logging section of the merged environment
// configuration. A missing env.yaml is not an error: the section is empty
// and the hard defaults apply.
type envConfig struct {
	section map[string]interface{}
}

func loadEnvConfig(dir string) (*envConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetConfigName(envConfigName)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading env config")
		}
	}

	// env.local.yaml carries machine-local overrides and wins on conflicts.
	v.SetConfigName(envLocalConfigName)
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "merging local env config")
		}
	}

	return &envConfig{section: v.GetStringMap(loggingSection)}, nil
}

// resolve computes the configuration for one logger name: base, then the
// global section, then the per-name section.
func (e *envConfig) resolve(name string, base LoggerConfig) (*LoggerConfig, error) {
	cfg := base
	if e != nil && len(e.section) > 0 {
		if err := applyOverlay(&cfg, e.section); err != nil {
			return nil, errors.Wrap(err, "logging section")
		}
		if sub, ok := e.section[strings.ToLower(name)]; ok {
			m, ok := sub.(map[string]interface{})
			if !ok {
				return nil, errors.Errorf("logging section for %q is not a mapping", name)
			}
			if err := applyOverlay(&cfg, m); err != nil {
				return nil, errors.Wrapf(err, "logging section for %q", name)
			}
		}
	}
	return &cfg, nil
}

// shutdownTimeout reads the facility-wide close timeout from the global
// section.
func (e *envConfig) shutdownTimeout() time.Duration {
	ms := int64(defaultShutdownTimeoutMS)
	if e != nil {
		if v, ok := e.section["shutdown_timeout_ms"]; ok {
			if parsed, err := cast.ToInt64E(v); err == nil && parsed >= 0 {
				ms = parsed
			}
		}
	}
	return time.Duration(ms) * time.Millisecond
}

func applyOverlay(cfg *LoggerConfig, m map[string]interface{}) error {
	for key, raw := range m {
		var err error
		switch key {
		case "level":
			cfg.Level, err = cast.ToStringE(raw)
		case "max_logfile_size":
			cfg.MaxLogfileSize, err = cast.ToInt64E(raw)
		case "max_logfile_backups":
			cfg.MaxLogfileBackups, err = cast.ToIntE(raw)
		case "errors_to_console":
			cfg.ErrorsToConsole, err = cast.ToBoolE(raw)
		case "to_console":
			cfg.ToConsole, err = consoleFloor(raw)
		case "file_format":
			cfg.FileFormat, err = cast.ToStringE(raw)
		case "stream_format":
			cfg.StreamFormat, err = cast.ToStringE(raw)
		case "time_format":
			cfg.TimeFormat, err = cast.ToStringE(raw)
		default:
			// Per-logger subsections and unrecognized keys ride along
			// untouched; resolve picks subsections up by name.
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "key %s", key)
		}
	}
	return nil
}

// consoleFloor normalizes the to_console value: booleans toggle mirroring
// of everything, strings name the minimum mirrored level.
func consoleFloor(raw interface{}) (string, error) {
	if b, ok := raw.(bool); ok {
		if b {
			return "trace", nil
		}
		return emptyString, nil
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return emptyString, err
	}
	return strings.TrimSpace(s), nil
}

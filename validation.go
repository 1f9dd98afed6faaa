package logging

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate *validator.Validate
var once sync.Once

func validateLoggerConfig(cfg *LoggerConfig) error {
	if cfg == nil {
		return errors.New(errMsgNilConfig)
	}

	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})

	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, errMsgConfigInvalid)
	}

	return nil
}

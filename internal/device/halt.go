package device

import (
	"time"

	"github.com/rs/zerolog"
)

// Halt stops the device for good: it logs the cause and never returns.
// Recovery needs a power cycle.
func Halt(logger zerolog.Logger, err error) {
	logger.Error().Err(err).Msg("fatal: device halted, power cycle required")
	for {
		time.Sleep(time.Minute)
	}
}

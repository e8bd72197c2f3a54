package device

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/HenriMatthijssen/ePaper/pkg/shell"
)

// Display redraws the panel with the image selected by messageID.
type Display interface {
	Redraw(ctx context.Context, messageID uint8) error
}

var ErrNoDisplay = errors.New("display driver unavailable")

// CommandDisplay hands the redraw to an external renderer, called as
// "<command...> <messageID>".
type CommandDisplay struct {
	argv []string
	run  shell.Runner
	log  zerolog.Logger
}

func (d *CommandDisplay) Redraw(ctx context.Context, messageID uint8) error {
	args := append(append([]string{}, d.argv[1:]...), strconv.Itoa(int(messageID)))
	if _, err := d.run.Run(ctx, d.argv[0], args...); err != nil {
		return fmt.Errorf("redraw: %w", err)
	}
	d.log.Info().Uint8("message_id", messageID).Msg("display redrawn")
	return nil
}

// LogDisplay only records redraw requests. Used when no renderer is set.
type LogDisplay struct {
	log zerolog.Logger
}

func (d LogDisplay) Redraw(_ context.Context, messageID uint8) error {
	d.log.Info().Uint8("message_id", messageID).Msg("redraw requested (no renderer configured)")
	return nil
}

// OpenDisplay prepares the display collaborator. An empty command selects
// LogDisplay; a command that cannot be found is fatal for the boot.
func OpenDisplay(command string, run shell.Runner, logger zerolog.Logger) (Display, error) {
	logger = logger.With().Str("component", "display").Logger()
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return LogDisplay{log: logger}, nil
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoDisplay, argv[0], err)
	}
	return &CommandDisplay{argv: argv, run: run, log: logger}, nil
}

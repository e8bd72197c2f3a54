// Package app wires one boot of the device: load the record, decide the
// network mode, then serve the surface that mode allows until a restart.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/HenriMatthijssen/ePaper/internal/config"
	"github.com/HenriMatthijssen/ePaper/internal/connectivity"
	"github.com/HenriMatthijssen/ePaper/internal/control"
	"github.com/HenriMatthijssen/ePaper/internal/device"
	"github.com/HenriMatthijssen/ePaper/internal/firmware"
	"github.com/HenriMatthijssen/ePaper/internal/flashblock"
	"github.com/HenriMatthijssen/ePaper/internal/metrics"
	"github.com/HenriMatthijssen/ePaper/internal/server"
	"github.com/HenriMatthijssen/ePaper/internal/session"
	"github.com/HenriMatthijssen/ePaper/internal/store"
	"github.com/HenriMatthijssen/ePaper/pkg/shell"
)

const shutdownTimeout = 5 * time.Second

// Options override collaborators that are otherwise built from Config.
type Options struct {
	Radio   connectivity.Radio
	Display device.Display
	Metrics *metrics.Metrics
}

type Boot struct {
	Config    config.Config
	Store     *store.Store
	Network   *connectivity.Manager
	State     connectivity.State
	Handler   http.Handler
	Restarter *device.Restarter

	log     zerolog.Logger
	restart chan string
}

// Prepare performs everything before the listener starts. It blocks for the
// whole connectivity decision. A display that cannot be opened returns an
// error wrapping device.ErrNoDisplay.
func Prepare(ctx context.Context, cfg config.Config, logger zerolog.Logger, opts Options) (*Boot, error) {
	m := opts.Metrics
	run := shell.Exec{}

	blk := flashblock.New(cfg.BlockPath, cfg.BlockOffset, cfg.BlockSize)
	st, err := store.Open(ctx, blk, logger)
	if err != nil {
		return nil, fmt.Errorf("open configuration: %w", err)
	}
	st.OnCommit(m.IncCommit)
	rec := st.Snapshot()
	logger.Info().
		Str("origin", string(st.Origin())).
		Str("hostname", rec.Hostname).
		Float32("schema", rec.SchemaVersion).
		Msg("configuration loaded")

	display := opts.Display
	if display == nil {
		if display, err = device.OpenDisplay(cfg.DisplayCommand, run, logger); err != nil {
			return nil, err
		}
	}
	if err := display.Redraw(ctx, rec.MessageID); err != nil {
		logger.Error().Err(err).Msg("initial redraw")
	}

	radio := opts.Radio
	if radio == nil {
		if radio, err = connectivity.OpenRadio(cfg.Radio, cfg.RadioIface, cfg.SimJoinOK, run); err != nil {
			return nil, err
		}
	}
	network := connectivity.New(radio, logger, m)
	state := network.Start(ctx, rec)

	b := &Boot{
		Config:  cfg,
		Store:   st,
		Network: network,
		State:   state,
		log:     logger,
		restart: make(chan string, 1),
	}
	b.Restarter = device.NewRestarter(cfg.RestartDelay, b.requestRestart, logger, m)

	deps := server.Deps{
		Config:     cfg,
		Store:      st,
		Sessions:   session.New(st),
		Dispatcher: control.New(st, display, network, logger, m),
		Network:    network,
		Firmware:   firmware.New(cfg.StagingDir, cfg.FirmwareMargin, logger, m),
		Restarter:  b.Restarter,
		Metrics:    m,
		Logger:     logger,
	}
	if state == connectivity.ConnectedStation {
		b.Handler = server.NewStationRouter(deps)
	} else {
		b.Handler = server.NewAPRouter(deps)
	}
	return b, nil
}

func (b *Boot) requestRestart(reason string) {
	select {
	case b.restart <- reason:
	default:
	}
}

// Restarts delivers the reason once the scheduled restart is due.
func (b *Boot) Restarts() <-chan string { return b.restart }

// Serve listens until a restart is due or ctx ends. It returns the restart
// reason, or ctx.Err() on cancellation.
func (b *Boot) Serve(ctx context.Context) (string, error) {
	srv := &http.Server{
		Addr:              b.Config.Bind,
		Handler:           b.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		b.log.Info().Str("addr", srv.Addr).Str("mode", b.State.String()).Msg("epaperd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var reason string
	var result error
	select {
	case <-ctx.Done():
		result = ctx.Err()
	case reason = <-b.restart:
	case err, ok := <-errCh:
		if ok && err != nil {
			return "", fmt.Errorf("http server: %w", err)
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		b.log.Warn().Err(err).Msg("http shutdown")
	}
	return reason, result
}

// Run boots repeatedly until ctx ends. In exec mode the first restart
// replaces the process instead.
func Run(ctx context.Context, cfg config.Config, logger zerolog.Logger, opts Options) error {
	for {
		b, err := Prepare(ctx, cfg, logger, opts)
		if err != nil {
			return err
		}
		reason, err := b.Serve(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		logger.Info().Str("reason", reason).Str("mode", cfg.RestartMode).Msg("restarting")
		if cfg.RestartMode == "exec" {
			return device.Reexec()
		}
	}
}

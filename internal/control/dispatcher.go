// Package control implements the remote control protocol: an API key, an
// action name and a value in, exactly one success or rejection out.
package control

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/HenriMatthijssen/ePaper/internal/device"
	"github.com/HenriMatthijssen/ePaper/internal/metrics"
	"github.com/HenriMatthijssen/ePaper/internal/record"
	"github.com/HenriMatthijssen/ePaper/internal/store"
)

type Request struct {
	Action string
	Value  string
	APIKey string
}

type Status int

const (
	Success Status = iota
	Rejected
)

func (s Status) String() string {
	if s == Success {
		return "success"
	}
	return "error"
}

// Result is the single outcome of a request. Restart asks the transport to
// restart the device once the response has been sent.
type Result struct {
	Status  Status
	Message string
	Restart bool
}

// Network is the part of connectivity the dispatcher needs.
type Network interface {
	SetHostname(ctx context.Context, name string) error
}

type Dispatcher struct {
	store   *store.Store
	display device.Display
	network Network
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func New(st *store.Store, display device.Display, network Network, logger zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		store:   st,
		display: display,
		network: network,
		log:     logger.With().Str("component", "control").Logger(),
		metrics: m,
	}
}

// rejection carries a message for the client out of a store update.
type rejection struct{ msg string }

func (r rejection) Error() string { return r.msg }

func reject(format string, args ...any) error {
	return rejection{msg: fmt.Sprintf(format, args...)}
}

func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	action, known := ParseAction(req.Action)
	res := d.dispatch(ctx, action, known, req)
	name := req.Action
	if !known {
		name = "unknown"
	}
	d.metrics.IncAction(name, res.Status.String())
	ev := d.log.Info()
	if res.Status == Rejected {
		ev = d.log.Warn()
	}
	ev.Str("action", name).Str("status", res.Status.String()).Msg(res.Message)
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, action Action, known bool, req Request) Result {
	if known && action == SetAPI {
		return d.setAPI(ctx, req.Value)
	}
	if req.APIKey != d.store.Snapshot().APIKey {
		return Result{Status: Rejected, Message: "invalid api key"}
	}
	if !known {
		return Result{Status: Rejected, Message: fmt.Sprintf("unknown action %q", req.Action)}
	}

	switch action {
	case Reboot:
		if req.Value != "true" {
			return Result{Status: Rejected, Message: fmt.Sprintf("reboot: invalid value %q, expected \"true\"", req.Value)}
		}
		return Result{Status: Success, Message: "rebooting", Restart: true}
	case Reset:
		if req.Value != "true" {
			return Result{Status: Rejected, Message: fmt.Sprintf("reset: invalid value %q, expected \"true\"", req.Value)}
		}
		if err := d.store.Erase(ctx); err != nil {
			return Result{Status: Rejected, Message: "reset failed: " + err.Error()}
		}
		return Result{Status: Success, Message: "configuration erased, restarting", Restart: true}
	case SetHost:
		return d.setHost(ctx, req.Value)
	case SetLanguage:
		return d.setLanguage(ctx, req.Value)
	case SetMessageID:
		return d.setMessageID(ctx, req.Value)
	case SetAPI:
		return d.setAPI(ctx, req.Value)
	}
	panic(fmt.Sprintf("control: unhandled action %d", action))
}

func (d *Dispatcher) update(ctx context.Context, fn func(*record.Record) error) error {
	_, err := d.store.Update(ctx, fn)
	return err
}

func (d *Dispatcher) fail(err error) Result {
	var rj rejection
	if errors.As(err, &rj) {
		return Result{Status: Rejected, Message: rj.msg}
	}
	return Result{Status: Rejected, Message: "could not save configuration: " + err.Error()}
}

// setAPI is the one-time bootstrap: it needs no key but latches for good.
func (d *Dispatcher) setAPI(ctx context.Context, value string) Result {
	err := d.update(ctx, func(r *record.Record) error {
		switch {
		case r.APIKeyLocked:
			return reject("set_api: api key is locked")
		case value == "":
			return reject("set_api: empty key")
		case value == record.DefaultAPIKey:
			return reject("set_api: key must differ from the factory default")
		}
		if err := record.CheckString("api key", value, record.MaxAPIKey); err != nil {
			return reject("set_api: %v", err)
		}
		r.APIKey = value
		r.APIKeyLocked = true
		return nil
	})
	if err != nil {
		return d.fail(err)
	}
	return Result{Status: Success, Message: "api key set to " + value}
}

func (d *Dispatcher) setHost(ctx context.Context, value string) Result {
	err := d.update(ctx, func(r *record.Record) error {
		if value == "" {
			return reject("set_host: empty hostname")
		}
		if err := record.CheckString("hostname", value, record.MaxHostname); err != nil {
			return reject("set_host: %v", err)
		}
		r.Hostname = value
		return nil
	})
	if err != nil {
		return d.fail(err)
	}
	if err := d.network.SetHostname(ctx, value); err != nil {
		d.log.Warn().Err(err).Str("hostname", value).Msg("apply hostname")
	}
	return Result{Status: Success, Message: "hostname set to " + value}
}

// binaryChoice parses the "0" / "1" values used by language and message id.
func binaryChoice(value string) (uint8, bool) {
	n, err := strconv.Atoi(value)
	if err != nil || (n != 0 && n != 1) {
		return 0, false
	}
	return uint8(n), true
}

// setLanguage stores 0 on invalid input and still rejects the request.
func (d *Dispatcher) setLanguage(ctx context.Context, value string) Result {
	n, ok := binaryChoice(value)
	err := d.update(ctx, func(r *record.Record) error {
		r.Language = record.Language(n)
		return nil
	})
	if err != nil {
		return d.fail(err)
	}
	if !ok {
		return Result{Status: Rejected, Message: fmt.Sprintf("set_language: invalid value %q, must be 0 or 1; language reset to 0", value)}
	}
	return Result{Status: Success, Message: fmt.Sprintf("language set to %d", n)}
}

// setMessageID stores 0 on invalid input and still rejects the request. A
// valid change redraws the display; repeating the current value does not.
func (d *Dispatcher) setMessageID(ctx context.Context, value string) Result {
	n, ok := binaryChoice(value)
	if !ok {
		if err := d.update(ctx, func(r *record.Record) error {
			r.MessageID = 0
			return nil
		}); err != nil {
			return d.fail(err)
		}
		return Result{Status: Rejected, Message: fmt.Sprintf("set_message_id: invalid value %q, must be 0 or 1; message_id reset to 0", value)}
	}
	if d.store.Snapshot().MessageID == n {
		return Result{Status: Success, Message: fmt.Sprintf("message_id already %d", n)}
	}
	if err := d.update(ctx, func(r *record.Record) error {
		r.MessageID = n
		return nil
	}); err != nil {
		return d.fail(err)
	}
	msg := fmt.Sprintf("message_id set to %d", n)
	if err := d.display.Redraw(ctx, n); err != nil {
		d.log.Error().Err(err).Uint8("message_id", n).Msg("redraw")
		msg += " (redraw failed)"
	}
	return Result{Status: Success, Message: msg}
}

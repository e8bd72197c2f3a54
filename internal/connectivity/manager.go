// Package connectivity decides at boot whether the device joins the stored
// network or falls back to its own setup access point. The decision holds
// for the lifetime of the boot; switching modes takes a restart.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/HenriMatthijssen/ePaper/internal/metrics"
	"github.com/HenriMatthijssen/ePaper/internal/record"
	"github.com/HenriMatthijssen/ePaper/internal/store"
)

type State int

const (
	Unconfigured State = iota
	Connecting
	ConnectedStation
	FallbackAP
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case ConnectedStation:
		return "connected_station"
	case FallbackAP:
		return "fallback_ap"
	default:
		return "unconfigured"
	}
}

// Setup access point, compiled in.
const (
	APName       = "ePaper-Setup"
	APPassphrase = "epaper-setup"
)

const (
	MaxAttempts  = 30
	PollInterval = time.Second
)

// Radio is the network interface the manager drives.
type Radio interface {
	// Join starts associating with the network and returns without waiting.
	Join(ctx context.Context, ssid, password string) error
	Connected(ctx context.Context) (bool, error)
	StartAP(ctx context.Context, ssid, passphrase string) error
	SetHostname(ctx context.Context, name string) error
}

type Manager struct {
	radio   Radio
	log     zerolog.Logger
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	state    State
	attempts int
	ssid     string
}

func New(radio Radio, logger zerolog.Logger, m *metrics.Metrics) *Manager {
	mgr := &Manager{
		radio:   radio,
		log:     logger.With().Str("component", "connectivity").Logger(),
		metrics: m,
		sleep:   sleepCtx,
	}
	mgr.setState(Unconfigured)
	return mgr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Start runs the boot-time decision and blocks for up to MaxAttempts polls.
// It always ends in ConnectedStation or FallbackAP.
func (m *Manager) Start(ctx context.Context, rec record.Record) State {
	if err := m.radio.SetHostname(ctx, rec.Hostname); err != nil {
		m.log.Warn().Err(err).Str("hostname", rec.Hostname).Msg("set hostname")
	}
	if rec.Unconfigured() {
		m.log.Info().Msg("no stored network credentials")
		return m.fallback(ctx)
	}

	m.mu.Lock()
	m.ssid = rec.NetworkSSID
	m.attempts = 0
	m.mu.Unlock()
	m.setState(Connecting)
	m.log.Info().Str("ssid", rec.NetworkSSID).Msg("joining network")

	if err := m.radio.Join(ctx, rec.NetworkSSID, rec.NetworkPassword); err != nil {
		m.log.Warn().Err(err).Msg("join request failed")
	}
	for i := 1; i <= MaxAttempts; i++ {
		if err := m.sleep(ctx, PollInterval); err != nil {
			break
		}
		m.mu.Lock()
		m.attempts = i
		m.mu.Unlock()
		ok, err := m.radio.Connected(ctx)
		if err != nil {
			m.log.Debug().Err(err).Int("attempt", i).Msg("status poll")
			continue
		}
		if ok {
			m.log.Info().Int("attempts", i).Msg("connected")
			m.setState(ConnectedStation)
			return ConnectedStation
		}
	}
	m.log.Warn().Int("attempts", MaxAttempts).Msg("could not join network")
	return m.fallback(ctx)
}

func (m *Manager) fallback(ctx context.Context) State {
	m.setState(FallbackAP)
	if err := m.radio.StartAP(ctx, APName, APPassphrase); err != nil {
		m.log.Error().Err(err).Msg("start access point")
	} else {
		m.log.Info().Str("ssid", APName).Msg("setup access point up")
	}
	return FallbackAP
}

// AcceptCredentials stores new station credentials. Nothing is checked
// against the network; the caller restarts and the next boot tries them.
func (m *Manager) AcceptCredentials(ctx context.Context, st *store.Store, ssid, password string) error {
	_, err := st.Update(ctx, func(r *record.Record) error {
		r.NetworkSSID = record.Clip(ssid, record.MaxSSID)
		r.NetworkPassword = record.Clip(password, record.MaxPassword)
		return nil
	})
	if err != nil {
		return err
	}
	m.log.Info().Str("ssid", ssid).Msg("network credentials stored")
	return nil
}

// SetHostname changes the advertised name of the running interface.
func (m *Manager) SetHostname(ctx context.Context, name string) error {
	return m.radio.SetHostname(ctx, name)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts is the number of status polls made by the last Start.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// SSID is the network the last Start tried to join.
func (m *Manager) SSID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ssid
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.metrics.SetConnState(s.String())
}

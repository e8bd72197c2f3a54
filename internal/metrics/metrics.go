// Package metrics owns the daemon's private Prometheus registry. All
// methods are safe on a nil *Metrics so components can run without it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version and Rev can be overridden at build time via -ldflags.
var (
	Version = "dev"
	Rev     = ""
)

var connStates = []string{"unconfigured", "connecting", "connected_station", "fallback_ap"}

type Metrics struct {
	reg *prometheus.Registry

	apiActions      *prometheus.CounterVec
	logins          *prometheus.CounterVec
	storeCommits    *prometheus.CounterVec
	firmwareBytes   prometheus.Counter
	firmwareResults *prometheus.CounterVec
	connState       *prometheus.GaugeVec
	restarts        *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		apiActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "epaper_api_actions_total",
			Help: "Control-plane actions by action and outcome.",
		}, []string{"action", "status"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "epaper_logins_total",
			Help: "Web login attempts by outcome.",
		}, []string{"outcome"}),
		storeCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "epaper_store_commits_total",
			Help: "Writes of the configuration block by operation.",
		}, []string{"op"}),
		firmwareBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "epaper_firmware_bytes_total",
			Help: "Firmware bytes written to the staging area.",
		}),
		firmwareResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "epaper_firmware_updates_total",
			Help: "Finished firmware uploads by result.",
		}, []string{"result"}),
		connState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "epaper_connectivity_state",
			Help: "1 for the current connectivity state, 0 otherwise.",
		}, []string{"state"}),
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "epaper_restarts_total",
			Help: "Restarts requested by reason.",
		}, []string{"reason"}),
	}
	build := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "epaper_build_info",
		Help:        "Build info of the daemon.",
		ConstLabels: prometheus.Labels{"version": Version, "rev": Rev},
	})
	m.reg.MustRegister(m.apiActions, m.logins, m.storeCommits, m.firmwareBytes,
		m.firmwareResults, m.connState, m.restarts, build)
	build.Set(1)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}


func (m *Metrics) IncAction(action, status string) {
	if m == nil {
		return
	}
	m.apiActions.WithLabelValues(action, status).Inc()
}

func (m *Metrics) IncLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCommit(op string) {
	if m == nil {
		return
	}
	m.storeCommits.WithLabelValues(op).Inc()
}

func (m *Metrics) AddFirmwareBytes(n int) {
	if m == nil {
		return
	}
	m.firmwareBytes.Add(float64(n))
}

func (m *Metrics) IncFirmware(result string) {
	if m == nil {
		return
	}
	m.firmwareResults.WithLabelValues(result).Inc()
}

func (m *Metrics) IncRestart(reason string) {
	if m == nil {
		return
	}
	m.restarts.WithLabelValues(reason).Inc()
}

// SetConnState marks state as current.
func (m *Metrics) SetConnState(state string) {
	if m == nil {
		return
	}
	for _, s := range connStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.connState.WithLabelValues(s).Set(v)
	}
}

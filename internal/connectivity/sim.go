package connectivity

import (
	"context"
	"sync"
)

// Sim is an in-process radio for development boards without wifi and for
// tests. JoinOK decides whether a join ever succeeds.
type Sim struct {
	JoinOK bool

	mu       sync.Mutex
	joined   string
	ap       string
	hostname string
	polls    int
}

func (s *Sim) Join(_ context.Context, ssid, _ string) error {
	s.mu.Lock()
	s.joined = ssid
	s.mu.Unlock()
	return nil
}

func (s *Sim) Connected(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	return s.JoinOK && s.joined != "", nil
}

func (s *Sim) StartAP(_ context.Context, ssid, _ string) error {
	s.mu.Lock()
	s.ap = ssid
	s.mu.Unlock()
	return nil
}

func (s *Sim) SetHostname(_ context.Context, name string) error {
	s.mu.Lock()
	s.hostname = name
	s.mu.Unlock()
	return nil
}

// Joined returns the last SSID passed to Join.
func (s *Sim) Joined() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined
}

// AP returns the SSID of the started access point, if any.
func (s *Sim) AP() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ap
}

func (s *Sim) Hostname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostname
}

func (s *Sim) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/micro-ha/zyxel-ap/addon/internal/model"
	"github.com/micro-ha/zyxel-ap/addon/internal/zyxel"
)

// Session is a programmable mock implementation of zyxel.Session.
// Outputs maps a command to its canned CLI output; RunFunc, when set,
// overrides the lookup entirely.
type Session struct {
	mu      sync.Mutex
	Outputs map[string]string
	RunFunc func(ctx context.Context, command string) (string, error)
	Calls   []string
	Closed  bool
}

func (s *Session) Run(ctx context.Context, command string) (string, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, command)
	run := s.RunFunc
	s.mu.Unlock()

	if run != nil {
		return run(ctx, command)
	}
	if out, ok := s.Outputs[command]; ok {
		return out, nil
	}
	return "", nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// CallsSnapshot returns a copy of the accumulated command log.
func (s *Session) CallsSnapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Calls))
	copy(out, s.Calls)
	return out
}

// Dialer hands out the configured Session, or DialErr when set.
type Dialer struct {
	mu      sync.Mutex
	Session *Session
	DialErr error
	Dials   int
}

func (d *Dialer) Dial(_ context.Context, _ model.APConfig) (zyxel.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Dials++
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	if d.Session == nil {
		return nil, fmt.Errorf("mock dialer has no session")
	}
	return d.Session, nil
}

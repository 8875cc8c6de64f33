package itinerary_test

import (
	"context"
	"sync"
	"time"

	"github.com/fleetclock/fleetclock/internal/directions"
	"github.com/fleetclock/fleetclock/internal/itinerary"
)

// scriptedProvider replays a fixed sequence of answers, repeating the last one.
type scriptedProvider struct {
	mu      sync.Mutex
	answers []answer
	calls   int
	reqs    []directions.Request
}

type answer struct {
	resp *directions.Response
	err  error
}

func (p *scriptedProvider) ComputeRoute(_ context.Context, req directions.Request) (*directions.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reqs = append(p.reqs, req)
	idx := p.calls
	if idx >= len(p.answers) {
		idx = len(p.answers) - 1
	}
	p.calls++
	a := p.answers[idx]
	return a.resp, a.err
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func found(legs ...directions.Leg) answer {
	return answer{resp: &directions.Response{
		StatusCode: 200,
		Routes:     []directions.Route{{Legs: legs}},
	}}
}

func status(code int) answer {
	return answer{resp: &directions.Response{StatusCode: code}}
}

func failure(err error) answer {
	return answer{err: err}
}

// fakeTimer fires immediately and records every wait.
type fakeTimer struct {
	mu    *sync.Mutex
	waits *[]time.Duration
	ch    chan time.Time
}

func (t *fakeTimer) Start(d time.Duration) {
	t.mu.Lock()
	*t.waits = append(*t.waits, d)
	t.mu.Unlock()
	t.ch <- time.Now()
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

// clock hands out fakeTimers that share one wait log.
type clock struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (c *clock) NewTimer() *fakeTimer {
	return &fakeTimer{mu: &c.mu, waits: &c.waits, ch: make(chan time.Time, 1)}
}

func (c *clock) Total() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, w := range c.waits {
		total += w
	}
	return total
}

// recordingSink keeps every reported failure.
type recordingSink struct {
	mu       sync.Mutex
	failures []itinerary.Failure
}

func (s *recordingSink) Report(_ context.Context, f itinerary.Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, f)
}

func (s *recordingSink) Failures() []itinerary.Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]itinerary.Failure(nil), s.failures...)
}

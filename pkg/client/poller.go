package client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NicolasHaas/roulette/pkg/model"
)

// FeedSource is the read side of the chat endpoint.
type FeedSource interface {
	FetchMessages(ctx context.Context) ([]model.Message, error)
	FetchOnlineCount(ctx context.Context) (int, error)
}

// PollHandlers receive fetch results tagged with their request sequence
// number. Sequence numbers increase per resource in request order.
type PollHandlers struct {
	Messages func(seq uint64, msgs []model.Message)
	Online   func(seq uint64, count int)
}

// Poller refreshes the feed and the online count on a fixed interval while
// started. Each tick fetches both concurrently; failures are logged and
// retried on the next tick.
type Poller struct {
	src      FeedSource
	interval time.Duration
	handlers PollHandlers

	msgSeq    atomic.Uint64
	onlineSeq atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a stopped poller.
func NewPoller(src FeedSource, interval time.Duration, h PollHandlers) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{src: src, interval: interval, handlers: h}
}

// Start runs one tick immediately and then one per interval until Stop.
// Calling Start on a running poller does nothing.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
	slog.Debug("poller started", "interval", p.interval)
}

// Stop cancels the loop and waits for it to exit. No handler runs after
// Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	slog.Debug("poller stopped")
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// RefreshMessages fetches the feed out of band. The result goes through
// the same handler and sequence numbering as timed ticks.
func (p *Poller) RefreshMessages(ctx context.Context) error {
	return p.fetchMessages(ctx)
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A tick and cancellation can be ready together.
			if ctx.Err() != nil {
				return
			}
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := p.fetchMessages(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("poll messages", "err", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := p.fetchOnline(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("poll online count", "err", err)
		}
	}()
	wg.Wait()
}

func (p *Poller) fetchMessages(ctx context.Context) error {
	seq := p.msgSeq.Add(1)
	msgs, err := p.src.FetchMessages(ctx)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	if p.handlers.Messages != nil {
		p.handlers.Messages(seq, msgs)
	}
	return nil
}

func (p *Poller) fetchOnline(ctx context.Context) error {
	seq := p.onlineSeq.Add(1)
	n, err := p.src.FetchOnlineCount(ctx)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	if p.handlers.Online != nil {
		p.handlers.Online(seq, n)
	}
	return nil
}

// latestSeq discards results older than the newest one applied. Callers
// synchronise access.
type latestSeq struct {
	applied uint64
}

func (l *latestSeq) accept(seq uint64) bool {
	if seq <= l.applied {
		return false
	}
	l.applied = seq
	return true
}

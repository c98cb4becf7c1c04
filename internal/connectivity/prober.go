package connectivity

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/funnier/internal/logging"
)

// DialFunc opens a connection; net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// ProberOptions configures a Prober.
type ProberOptions struct {
	Host     string
	Interval time.Duration
	Timeout  time.Duration
	// Metered classifies a reachable network as Metered instead of Unmetered.
	Metered bool
	Dial    DialFunc
	Logger  *zap.Logger
}

// Prober is a Monitor that periodically dials a TCP host. A successful dial
// means the network is up; the metered class comes from configuration since
// it cannot be observed from a socket.
type Prober struct {
	notifier

	opts   ProberOptions
	logger *zap.Logger

	mu     sync.RWMutex
	status Status

	stop      chan struct{}
	closeOnce sync.Once
}

// NewProber creates a Prober. The initial status is Offline until the first Probe.
func NewProber(opts ProberOptions) *Prober {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Dial == nil {
		d := &net.Dialer{}
		opts.Dial = d.DialContext
	}
	return &Prober{
		opts:   opts,
		logger: logging.OrNop(opts.Logger),
		status: Offline,
		stop:   make(chan struct{}),
	}
}

// Status implements Monitor.
func (p *Prober) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Subscribe implements Monitor.
func (p *Prober) Subscribe(fn func(Status)) func() {
	return p.subscribe(fn)
}

// Probe dials once, updates the status and notifies listeners if it changed.
func (p *Prober) Probe(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	next := Offline
	conn, err := p.opts.Dial(ctx, "tcp", p.opts.Host)
	if err == nil {
		_ = conn.Close()
		next = Unmetered
		if p.opts.Metered {
			next = Metered
		}
	}

	p.mu.Lock()
	prev := p.status
	p.status = next
	p.mu.Unlock()

	if prev != next {
		p.logger.Info("connectivity changed",
			zap.Stringer("from", prev),
			zap.Stringer("to", next),
		)
		p.notify(next)
	}
	return next
}

// Run probes immediately and then on every interval until ctx is done or
// Close is called.
func (p *Prober) Run(ctx context.Context) {
	p.Probe(ctx)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}

// Close stops Run.
func (p *Prober) Close() {
	p.closeOnce.Do(func() { close(p.stop) })
}

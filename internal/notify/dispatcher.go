// Package notify delivers booking notifications without holding up the
// booking flow.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"slotbook/internal/metrics"
	"slotbook/internal/model"
)

// Sender delivers one notification.
type Sender interface {
	Send(ctx context.Context, n model.Notification) error
}

// Config holds configuration for the dispatcher.
type Config struct {
	// MaxConcurrent limits parallel sends. Default: 10.
	MaxConcurrent int
	// Rate is sends per second across all goroutines. Default: 20.
	Rate float64
	// Burst is the limiter bucket size. Default: 30.
	Burst int
	// SendTimeout bounds one send including the rate limiter wait. Default: 30s.
	SendTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 10,
		Rate:          20,
		Burst:         30,
		SendTimeout:   30 * time.Second,
	}
}

// Dispatcher is a fire-and-forget notification sink.
type Dispatcher struct {
	sender  Sender
	limiter *rate.Limiter
	sem     chan struct{}
	timeout time.Duration
	logger  *zerolog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a dispatcher sending through sender.
func NewDispatcher(sender Sender, cfg Config, logger *zerolog.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.Rate <= 0 {
		cfg.Rate = def.Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		timeout: cfg.SendTimeout,
		logger:  logger,
	}
}

// Notify queues n and returns immediately. Delivery errors are logged and
// counted, never returned.
func (d *Dispatcher) Notify(n model.Notification) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		metrics.IncNotification("dropped")
		d.logger.Warn().Str("booking_id", n.BookingID).Str("kind", string(n.Kind)).Msg("notification dropped after shutdown")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.sem <- struct{}{}
		defer func() { <-d.sem }()
		d.deliver(n)
	}()
}

func (d *Dispatcher) deliver(n model.Notification) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncNotification("failed")
			d.logger.Error().
				Interface("panic", r).
				Str("booking_id", n.BookingID).
				Str("kind", string(n.Kind)).
				Msg("notification sender panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.limiter.Wait(ctx); err != nil {
		metrics.IncNotification("failed")
		d.logger.Error().Err(err).Str("booking_id", n.BookingID).Msg("notification rate limiter")
		return
	}

	if err := d.sender.Send(ctx, n); err != nil {
		metrics.IncNotification("failed")
		d.logger.Error().Err(err).
			Str("booking_id", n.BookingID).
			Str("kind", string(n.Kind)).
			Msg("send notification")
		return
	}

	metrics.IncNotification("sent")
	d.logger.Debug().Str("booking_id", n.BookingID).Str("kind", string(n.Kind)).Msg("notification sent")
}

// Close stops accepting notifications and waits for queued ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

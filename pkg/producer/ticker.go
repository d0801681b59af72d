package producer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nicktill/gpiolog/pkg/store"
)

// Appender stores one sample.
type Appender interface {
	Append(ctx context.Context, pinState, ledState int) (store.Sample, error)
}

// Ticker writes a synthetic alternating sample on a fixed interval.
type Ticker struct {
	store    Appender
	interval time.Duration

	mu      sync.Mutex
	counter int
}

// NewTicker creates a timer-mode producer.
func NewTicker(s Appender, interval time.Duration) *Ticker {
	return &Ticker{store: s, interval: interval}
}

// Reset sets the counter back to zero.
func (t *Ticker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counter = 0
}

// Tick appends one sample with both states set to counter mod 2. The counter
// advances whether or not the append succeeds.
func (t *Ticker) Tick(ctx context.Context) (store.Sample, error) {
	t.mu.Lock()
	value := t.counter % 2
	t.counter++
	t.mu.Unlock()

	return t.store.Append(ctx, value, value)
}

// Run ticks once immediately and then every interval until ctx is cancelled.
// A failed tick is logged and does not stop the loop.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	log.Printf("Timer producer started (every %v)", t.interval)
	t.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping timer producer")
			return
		case <-ticker.C:
			t.runTick(ctx)
		}
	}
}

func (t *Ticker) runTick(ctx context.Context) {
	sample, err := t.Tick(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("Timer tick failed: %v", err)
		return
	}
	log.Printf("Entry #%d: pin=%d, led=%d", sample.ID, sample.PinState, sample.LEDState)
}

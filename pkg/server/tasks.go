package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nicktill/gpiolog/pkg/config"
	"github.com/nicktill/gpiolog/pkg/snapshot"
	"github.com/nicktill/gpiolog/pkg/viewer"
)

// gcDiscardRatio rewrites a value log file once half of it is garbage.
const gcDiscardRatio = 0.5

// BroadcastData periodically pushes the latest data to connected dashboards.
// Each push exports a fresh snapshot, so nothing runs while no dashboard is
// connected. Uses exponential backoff on errors to prevent log spam while
// the bridge container is down.
func BroadcastData(ctx context.Context, service *viewer.Service, hub *viewer.Hub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var consecutiveErrors int
	var lastErrorTime time.Time
	const maxBackoff = 5 * time.Minute

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !hub.HasClients() {
				continue
			}

			data := service.GetData(ctx, config.DefaultDataLimit)
			if data.Error != "" {
				consecutiveErrors++
				now := time.Now()

				// 1s, 2s, 4s ... capped at 5m
				backoff := time.Duration(1<<uint(min(consecutiveErrors-1, 8))) * time.Second
				if backoff > maxBackoff {
					backoff = maxBackoff
				}

				if lastErrorTime.IsZero() || now.Sub(lastErrorTime) >= backoff {
					log.Printf("Failed to refresh data for broadcast (error #%d, backoff %v): %s",
						consecutiveErrors, backoff, data.Error)
					lastErrorTime = now
				}
			} else if consecutiveErrors > 0 {
				log.Printf("Data broadcast recovered after %d errors", consecutiveErrors)
				consecutiveErrors = 0
			}

			// Errors are pushed too so dashboards can show them.
			update := viewer.Update{
				Type:      "data_update",
				Timestamp: time.Now().Unix(),
				Data:      data,
			}
			if err := hub.Broadcast(update); err != nil {
				log.Printf("Failed to broadcast data: %v", err)
			}
		}
	}
}

// RunLedgerPrune deletes export records older than retention, once on
// startup and then every config.LedgerPruneInterval.
func RunLedgerPrune(ledger *snapshot.Ledger, retention time.Duration, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.LedgerPruneInterval)
	defer ticker.Stop()

	prune := func() {
		start := time.Now()
		removed, err := ledger.Prune(context.Background(), start.Add(-retention))
		if err != nil {
			log.Printf("Ledger prune failed: %v", err)
			return
		}
		if removed > 0 {
			log.Printf("Ledger prune removed %d records older than %v in %v",
				removed, retention, time.Since(start).Round(time.Millisecond))
		}
	}

	log.Printf("Ledger retention scheduler started (keeps %v, runs every %v)", retention, config.LedgerPruneInterval)
	prune()

	for {
		select {
		case <-ticker.C:
			prune()
		case <-stop:
			log.Println("Stopping ledger retention scheduler")
			return
		}
	}
}

// RunLedgerGC runs BadgerDB value log GC on the ledger periodically to
// reclaim the space pruned records leave behind.
func RunLedgerGC(ledger *snapshot.Ledger, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.LedgerGCInterval)
	defer ticker.Stop()

	log.Printf("Ledger GC scheduler started (runs every %v)", config.LedgerGCInterval)

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			if err := ledger.RunGC(gcDiscardRatio); err != nil {
				log.Printf("Ledger GC failed: %v", err)
			} else {
				log.Printf("Ledger GC completed in %v", time.Since(start).Round(time.Millisecond))
			}
		case <-stop:
			log.Println("Stopping ledger GC scheduler")
			return
		}
	}
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/gpiolog/pkg/config"
	"github.com/nicktill/gpiolog/pkg/snapshot"
)

// backgroundStopTimeout bounds how long shutdown waits for background tasks.
const backgroundStopTimeout = 5 * time.Second

// RunViewer serves the viewer on cfg.Port until ctx is cancelled, then
// shuts down gracefully.
func RunViewer(ctx context.Context, cfg config.Viewer) error {
	log.Println("Starting GPIO viewer...")

	ledger, err := InitializeLedger(cfg)
	if err != nil {
		return err
	}
	v := InitializeViewer(cfg, ledger, snapshot.ExecRunner{})
	defer v.Close()

	listener, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
	}

	router := mux.NewRouter()
	SetupRoutes(router, v, cfg.Port)

	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v.Hub.Run(bgCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		BroadcastData(bgCtx, v.Service, v.Hub, config.BroadcastInterval)
	}()
	log.Printf("Live feed started (updates every %v while dashboards are open)", config.BroadcastInterval)

	stopPrune := make(chan bool)
	wg.Add(1)
	go RunLedgerPrune(ledger, cfg.LedgerRetention, stopPrune, &wg)

	stopGC := make(chan bool)
	wg.Add(1)
	go RunLedgerGC(ledger, stopGC, &wg)

	srv := &http.Server{
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	log.Printf("Viewer listening on http://localhost:%s", cfg.Port)
	log.Println("API endpoints:")
	log.Println("   GET  /api/data?limit=N  - Recent entries")
	log.Println("   GET  /api/stats         - Pin/LED counts")
	log.Println("   GET  /api/export/csv    - CSV download")
	log.Println("   POST /api/clear         - Clear the live log")

	stopBackground := func() {
		cancel()
		close(stopPrune)
		close(stopGC)
	}
	return serve(ctx, srv, listener, stopBackground, &wg)
}

// RunBridge serves the bridge RPC on cfg.Addr and, in timer mode, runs the
// ticker until ctx is cancelled.
func RunBridge(ctx context.Context, cfg config.Bridge) error {
	log.Printf("Starting GPIO bridge in %s mode...", cfg.Mode)

	b, err := InitializeBridge(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	router := mux.NewRouter()
	SetupBridgeRoutes(router, b, cfg.Mode)

	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	if b.Ticker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Ticker.Run(bgCtx)
		}()
	}

	srv := &http.Server{
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}
	log.Printf("Bridge listening on %s", listener.Addr())

	return serve(ctx, srv, listener, cancel, &wg)
}

// serve runs srv until ctx is cancelled, then stops background tasks
// before shutting the server down and waits for them with a timeout.
func serve(ctx context.Context, srv *http.Server, listener net.Listener, stopBackground func(), wg *sync.WaitGroup) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received...")
	case serveErr = <-errCh:
		log.Printf("Server failed: %v", serveErr)
	}

	// Cancel background tasks first; wg.Wait below depends on it.
	log.Println("Stopping background tasks...")
	stopBackground()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	log.Println("Gracefully shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown warning: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All background tasks stopped cleanly")
	case <-time.After(backgroundStopTimeout):
		log.Println("Some background tasks did not stop in time (forcing exit)")
	}

	return serveErr
}

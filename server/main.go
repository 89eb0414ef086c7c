package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/server/flags"
	"github.com/nimbuslab/flotilla/server/log"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Versioning information set at build time
var version, commit = "dev", "n/a"

var dataRoot string
var startedAt time.Time

// dispatcher fires the plan's schedule once started.
var dispatcher *Dispatcher

// Global context for shutdown cascading. When cancel() is called (from signal handler),
// all goroutines watching ctx.Done() begin their shutdown sequence.
var ctx, cancel = context.WithCancel(context.Background())

// wg tracks the two main goroutines: dispatcher and HTTP server.
// main() blocks on wg.Wait() and only exits when both are done.
var wg sync.WaitGroup

func main() {
	// Setup logger first as this will be used to report progress of the rest of the setup
	if err := log.Init(); err != nil {
		lo.Must(fmt.Fprintln(os.Stderr, err))
		os.Exit(1)
	}
	log.Info("Flotilla server starting up...", "version", version, "commit", commit)
	startedAt = time.Now().UTC()

	// Create data directory
	dataRoot = viper.GetString(flags.ServerData)
	if err := os.MkdirAll(dataRoot, 0755); err != nil {
		log.Error("Failed to create data directory", "error", err)
		os.Exit(1)
	}

	// Setup network listener
	lis, err := net.Listen("tcp", viper.GetString(flags.Listen))
	if err != nil {
		log.Error("Failed to listen", "error", err)
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	setupInterrupts()

	// Setup result recording
	if results, err = newRecorder(dataRoot); err != nil {
		log.Error("Failed to create result recorder", "error", err)
		os.Exit(1)
	}

	// Setup fleet provider, scheduler and resolver
	if err = createFleet(); err != nil {
		log.Error("Failed to create fleet", "error", err)
		os.Exit(1)
	}

	// Setup cron dispatcher
	if dispatcher, err = newDispatcher(fleetPlan, func(trigger fleet.Trigger) {
		invokeTrigger(ctx, trigger)
	}); err != nil {
		log.Error("Failed to create dispatcher", "error", err)
		os.Exit(1)
	}

	// Dispatcher goroutine: the cron runtime fires schedule entries until
	// shutdown. A companion goroutine waits for ctx cancellation, stops the
	// cron runtime (waiting for in-flight firings), then closes the recorder.
	wg.Add(1)
	dispatcher.Start()
	go func() {
		<-ctx.Done() // triggered by cancel() in signal handler
		dispatcher.Stop()
		results.Close()
		wg.Done()
	}()

	// HTTP server goroutine. A nested goroutine watches for shutdown and calls
	// Shutdown(), which stops accepting new connections and waits for in-flight
	// requests to complete. Then Serve() returns and wg.Done() unblocks main.
	httpServer := &http.Server{Handler: createRouter()}
	wg.Add(1)
	go func() {
		go func() {
			<-ctx.Done() // triggered by cancel() in signal handler
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("Failed to shut down HTTP server cleanly", "error", err)
			}
		}()

		log.Info("Server listening", "address", lis.Addr())
		if err := httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Failed to serve", "error", err)
			os.Exit(1)
		}
		wg.Done()
	}()

	// Block until both dispatcher and HTTP server goroutines have finished.
	wg.Wait()
	log.Info("Shutdown completed. Bye!")
}

// setupInterrupts handles SIGINT and SIGTERM with a double-tap pattern:
// - First signal: calls cancel() which cascades shutdown through ctx.Done() to all goroutines
// - Second signal: forces immediate exit (in case graceful shutdown hangs)
func setupInterrupts() {
	sig := make(chan os.Signal, 1) // buffered: won't miss a signal while processing
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		log.Info("Shutdown signal received, attempting graceful shutdown")
		cancel() // triggers ctx.Done() everywhere
		<-sig
		log.Warn("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()
}

// Command server runs the chat server as a standalone long-running process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout is the deadline of the context main passes to
// Server.Shutdown once a shutdown signal arrives, mirroring the teacher's
// cmd/server/main.go fixed five-second allowance. Shutdown only closes the
// listener and does not consult the deadline; draining in-flight
// connections happens inside ListenAndServe, bounded by its shutdownDrain.
const shutdownTimeout = 5 * time.Second

var (
	version = "dev"
	commit  = "none"
)

func init() {
	cfgFile := flag.String("config", "settings.env", "Path to config file")
	showVersion := flag.Bool("version", false, "Display build information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%-10s %s\n", "version:", version)
		fmt.Printf("%-10s %s\n", "commit:", commit)
		os.Exit(0)
	}

	if err := godotenv.Load(*cfgFile); err != nil {
		fmt.Printf("config file (%s) not found, defaulting to env vars for app config...\n", *cfgFile)
	} else {
		fmt.Printf("loaded config file (%s)\n", *cfgFile)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := makeDeps()
	if err != nil {
		fmt.Printf("startup failed: %s\n", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.srv.ListenAndServe(gctx)
	})

	<-ctx.Done()
	d.logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.srv.Shutdown(shutdownCtx); err != nil {
		d.logger.Error("shutdown did not complete cleanly", "err", err)
	}

	if err := g.Wait(); err != nil {
		d.logger.Error("server did not shut down cleanly", "err", err)
		os.Exit(1)
	}
}

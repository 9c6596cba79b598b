// Command learnerd serves the companion daemon the web UI talks to.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/ieltslisten/learner/internal/api/http"
	"github.com/ieltslisten/learner/internal/app"
	"github.com/ieltslisten/learner/internal/config"
)

func main() {
	fs := flag.NewFlagSet("learnerd", flag.ExitOnError)
	envFile := fs.String("env", ".env", "optional dotenv file")
	addr := fs.String("addr", "", "listen address (overrides LEARNER_HTTP_ADDR)")
	_ = fs.Parse(os.Args[1:])

	cfg := config.Load(*envFile)
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	a, err := app.New(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(a),
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Printf("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s (api=%s, db=%s)", cfg.HTTPAddr, cfg.APIURL, cfg.DBDriver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("server: %v", err)
	}
	// flushes listening trackers before the process exits
	if err := a.Close(); err != nil {
		log.Printf("close: %v", err)
	}
}

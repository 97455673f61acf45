package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/astrochat/relay/internal/config"
	"github.com/astrochat/relay/internal/handler"
	agentservice "github.com/astrochat/relay/internal/service/agent"
	"github.com/astrochat/relay/internal/service/auth"
	"github.com/astrochat/relay/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if len(cfg.Session.Secret) == 0 {
		log.Println("SESSION_SECRET not set, browser sessions will not survive a restart")
	}

	sessions := session.NewStore(cfg.Session.Secret, cfg.Session.TTL)
	go sessions.Sweep(ctx, cfg.Session.TTL/2)

	authSvc := auth.NewService(cfg.Salesforce.TokenURL(), cfg.Salesforce.ClientID, cfg.Salesforce.ClientSecret)
	agentSvc := agentservice.NewService(cfg.Salesforce, authSvc)

	router := handler.NewRouter(agentSvc, sessions)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("agent relay listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

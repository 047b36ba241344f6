package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sfaret/stipslite/internal/auth"
	"github.com/sfaret/stipslite/internal/catalog"
	"github.com/sfaret/stipslite/internal/chat"
	"github.com/sfaret/stipslite/internal/flows"
	"github.com/sfaret/stipslite/internal/server"
	"github.com/sfaret/stipslite/internal/store"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the portal web server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	runner := newRunner(flows.WithMetrics(flows.NewMetrics(reg)), flows.WithRecorder(db))

	sessions := auth.NewSessions(db, cfg.Auth.SessionTTL)
	sessions.StartSweeper()
	defer sessions.Stop()

	hub := chat.NewHub(0)
	srv := server.New(server.Deps{
		DB:         db,
		Flows:      runner,
		Catalog:    cat,
		Accounts:   auth.AccountsFromConfig(cfg.Auth, db),
		Sessions:   sessions,
		Chat:       chat.NewService(db, hub),
		CookieName: cfg.Auth.CookieName,
		Version:    VersionString(),
		Registry:   reg,
	})

	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("db", dbPath).Msg("stipslite serving")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

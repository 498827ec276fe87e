package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/revision/internal/evaluate"
	"github.com/pavelanni/revision/internal/generate"
	"github.com/pavelanni/revision/internal/handler"
	appI18n "github.com/pavelanni/revision/internal/i18n"
	"github.com/pavelanni/revision/internal/llm/prompts"
	"github.com/pavelanni/revision/internal/metrics"
	"github.com/pavelanni/revision/internal/model"
	"github.com/pavelanni/revision/internal/store"
)

const cleanupInterval = 15 * time.Minute

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the practice quiz API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("store-dsn", store.DefaultDSN, "SQLite DSN for sessions (in memory by default)")
	f.Duration("session-ttl", store.DefaultSessionTTL, "Remove sessions idle for longer than this")
	f.StringP("lang", "l", "en", "Default message language (en, ru)")
	f.StringSlice("cors-origins", nil, "Browser origins allowed to call the API")
	f.Float64("rate-limit", 1, "Provider-backed requests per second per client (0 disables)")
	f.Int("rate-burst", 5, "Burst size for --rate-limit")
	f.String("session-secret", "", "Key for signing session cookies (random when empty)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.Bool("skip-ping", false, "Do not check the LLM endpoint at startup")
	f.String("catalog", "", "Reference tables YAML file (defaults to the built-in catalog)")
	addLLMFlags(f)
	addLogFlags(f)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	logCloser := setupLogging(v, os.Stderr)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	if err := prompts.Load(prompts.Templates); err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}
	cat, err := loadCatalog(v.GetString("catalog"))
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	db, err := store.New(v.GetString("store-dsn"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	client, err := newLLMClient(v)
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	if v.GetBool("record-exchanges") {
		client.SetRecorder(db)
	}
	if !v.GetBool("skip-ping") {
		if err := pingLLM(ctx, client); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", client.Model())
	}

	m := metrics.New()
	gen := generate.New(client, generate.WithObserver(m.ObserveGeneration))
	ev := evaluate.New(client, v.GetDuration("judge-timeout"), evaluate.WithObserver(func(o evaluate.Outcome) {
		m.ObserveEvaluation(string(o))
	}))

	appCfg := model.AppConfig{
		Lang:          lang,
		CORSOrigins:   v.GetStringSlice("cors-origins"),
		RateLimit:     v.GetFloat64("rate-limit"),
		RateBurst:     v.GetInt("rate-burst"),
		SessionSecret: v.GetString("session-secret"),
		SecureCookies: v.GetBool("secure-cookies"),
		SessionTTL:    v.GetDuration("session-ttl"),
	}
	h, err := handler.New(db, gen, ev, cat, m, appCfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	go db.RunCleanup(ctx, cleanupInterval, appCfg.SessionTTL)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", addr,
		"model", client.Model(),
		"judge_model", v.GetString("judge-model"),
		"llm_url", v.GetString("llm-url"),
		"lang", lang,
		"store", v.GetString("store-dsn"),
		"rate_limit", appCfg.RateLimit,
		"cors_origins", appCfg.CORSOrigins,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

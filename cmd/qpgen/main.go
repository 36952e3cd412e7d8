package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RAHUL-DevelopeRR/QP/internal/docgen"
	"github.com/RAHUL-DevelopeRR/QP/internal/generate"
	"github.com/RAHUL-DevelopeRR/QP/internal/handler"
	appI18n "github.com/RAHUL-DevelopeRR/QP/internal/i18n"
	"github.com/RAHUL-DevelopeRR/QP/internal/llm"
	"github.com/RAHUL-DevelopeRR/QP/internal/llm/prompts"
	"github.com/RAHUL-DevelopeRR/QP/internal/session"
	"github.com/RAHUL-DevelopeRR/QP/internal/store"
)

func main() {
	loadDotenv()
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotenv reads .env.local then .env. Variables already set win, so the
// first file to define a key takes precedence.
func loadDotenv() {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("error reading env file", "path", name, "error", err)
		}
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "qpgen",
		Short:        "CIA question bank and question paper generator",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd(), layoutCmd(), hashKeyCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `qpgen --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addLLMFlags registers the generation service settings shared by serve and generate.
func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the generation service")
	f.String("llm-model", "gpt-4o-mini", "Model name")
	f.Int("llm-max-tokens", 8000, "Maximum tokens per reply")
	f.Duration("llm-timeout", 3*time.Minute, "Timeout of a single generation request (0 = none)")
	f.Bool("llm-ping", false, "Check the generation service before starting")
	f.Float32("temperature", generate.DefaultTemperature, "Sampling temperature")
	f.Bool("json-mode", false, "Ask the service for a JSON object reply on the structured paper step")
	f.String("institution", prompts.DefaultInstitution, "Institution named in the paper header")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	addLLMFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", store.MemoryDSN, "SQLite database path for the generation log (default keeps it in process memory)")
	f.String("docgen-url", "http://localhost:5000", "Base URL of the document rendering service")
	f.Duration("docgen-timeout", 60*time.Second, "Timeout of a document rendering request")
	f.String("access-hash", "", "bcrypt hash of the API access key, as printed by qpgen hash-key; empty leaves the API open")
	f.StringSlice("allowed-origins", []string{"*"}, "Origins allowed to call the JSON API")
	f.StringP("lang", "l", "en", "UI language")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /qp)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.Duration("session-ttl", session.DefaultIdleTTL, "Idle time after which a UI session is dropped")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QPGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("qpgen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/qpgen")
	v.AddConfigPath("/etc/qpgen")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// newGenerator builds the generation pipeline from the LLM flags. rec may be nil.
func newGenerator(ctx context.Context, v *viper.Viper, rec generate.Recorder) (*generate.Generator, error) {
	client := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		v.GetInt("llm-max-tokens"),
		llm.WithTimeout(v.GetDuration("llm-timeout")),
	)
	if v.GetBool("llm-ping") {
		if err := client.Ping(ctx); err != nil {
			return nil, fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", client.Model())
	}
	if v.GetString("llm-key") == "" {
		slog.Warn("no LLM API key configured; generation requests will be refused by most services")
	}

	opts := []generate.Option{
		generate.WithPromptOptions(prompts.Options{Institution: v.GetString("institution")}),
		generate.WithTemperature(float32(v.GetFloat64("temperature"))),
		generate.WithJSONMode(v.GetBool("json-mode")),
	}
	if rec != nil {
		opts = append(opts, generate.WithRecorder(rec))
	}
	return generate.New(client, opts...), nil
}

// normalizeBasePath returns "" or a prefix with one leading and no trailing slash.
func normalizeBasePath(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	gen, err := newGenerator(ctx, v, db)
	if err != nil {
		return err
	}

	docs := docgen.New(v.GetString("docgen-url"), v.GetDuration("docgen-timeout"))
	if err := docs.Ping(ctx); err != nil {
		// Exports fail individually until the service is up; generation does not need it.
		slog.Warn("document service unavailable", "url", v.GetString("docgen-url"), "error", err)
	}

	sessions := session.NewStore(v.GetDuration("session-ttl"))
	go sessions.Run(ctx, time.Minute)

	basePath := normalizeBasePath(v.GetString("base-path"))
	h, err := handler.New(sessions, gen, docs, db, handler.Config{
		BasePath:       basePath,
		SecureCookies:  v.GetBool("secure-cookies"),
		AccessHash:     v.GetString("access-hash"),
		APIConfigured:  v.GetString("llm-key") != "",
		AllowedOrigins: v.GetStringSlice("allowed-origins"),
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"model", v.GetString("llm-model"),
			"llm_url", v.GetString("llm-url"),
			"docgen_url", v.GetString("docgen-url"),
			"lang", lang,
			"base_path", basePath,
			"api_protected", v.GetString("access-hash") != "",
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pavelanni/slidequiz/internal/extract"
	"github.com/pavelanni/slidequiz/internal/handler"
	appI18n "github.com/pavelanni/slidequiz/internal/i18n"
	"github.com/pavelanni/slidequiz/internal/llm"
	"github.com/pavelanni/slidequiz/internal/metrics"
	"github.com/pavelanni/slidequiz/internal/model"
	"github.com/pavelanni/slidequiz/internal/store"
	"github.com/pavelanni/slidequiz/internal/workspace"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "slidequiz",
		Short: "Multiple-choice exams drafted from lecture slides",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd(), composeCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `slidequiz --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the instructor web interface",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "slidequiz.db", "SQLite database path")
	f.StringP("lang", "l", "es", "Default UI language (es, en)")
	f.Int("exam-size", 40, "Default number of questions per exam")
	f.Bool("require-exact", true, "Refuse to activate exams shorter than requested")
	f.Int("max-files", 35, "Maximum PDFs per upload")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /gine)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set SLIDEQUIZ_ADMIN_PASSWORD)")
	f.Bool("metrics", true, "Expose Prometheus metrics on /metrics")
	addGenerationFlags(f)
	addLogFlags(f)
	return cmd
}

// addGenerationFlags registers the flags shared by every command that
// talks to a model.
func addGenerationFlags(f *pflag.FlagSet) {
	d := llm.DefaultConfig()
	f.String("llm-provider", d.Provider, "Question generator (openai, anthropic, gemini, mock)")
	f.String("llm-url", d.URL, "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the provider")
	f.String("llm-model", d.Model, "Model name")
	f.Int("llm-max-tokens", d.MaxTokens, "Maximum tokens per generation call")
	f.Float64("llm-temperature", d.Temperature, "Sampling temperature")
	f.Duration("llm-timeout", d.Timeout, "Timeout for one generation call")
	f.Float64("llm-rate", 0, "Maximum generation calls per minute (0 = unlimited)")
	f.Int("llm-burst", d.Burst, "Burst size for the rate limiter")
	f.String("subject", "Ginecología y Obstetricia", "Subject named in generation prompts")
	f.String("question-lang", "es", "Language of generated questions (es, en)")
	f.Int("default-direct", 2, "Default number of direct (type A) questions per topic")
	f.Int("default-integrated", 2, "Default number of integrated (type B) questions per topic")
	f.Int("default-case", 1, "Default number of case-study (type C) questions per topic")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("log-file", "", "Also write logs to this file, rotated by size")
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

	var out io.Writer = os.Stderr
	if path := v.GetString("log-file"); path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(out, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("SLIDEQUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("slidequiz")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/slidequiz")
	v.AddConfigPath("/etc/slidequiz")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func llmConfig(v *viper.Viper) llm.Config {
	return llm.Config{
		Provider:      strings.ToLower(strings.TrimSpace(v.GetString("llm-provider"))),
		URL:           v.GetString("llm-url"),
		APIKey:        v.GetString("llm-key"),
		Model:         v.GetString("llm-model"),
		MaxTokens:     v.GetInt("llm-max-tokens"),
		Temperature:   v.GetFloat64("llm-temperature"),
		Timeout:       v.GetDuration("llm-timeout"),
		RatePerMinute: v.GetFloat64("llm-rate"),
		Burst:         v.GetInt("llm-burst"),
	}
}

func defaultCounts(v *viper.Viper) model.TypeCounts {
	return model.TypeCounts{
		Direct:     v.GetInt("default-direct"),
		Integrated: v.GetInt("default-integrated"),
		CaseStudy:  v.GetInt("default-case"),
	}
}

// newGenerator builds the question generator from the generation flags.
func newGenerator(ctx context.Context, v *viper.Viper) (*llm.Generator, llm.Config, error) {
	cfg := llmConfig(v)
	provider, err := llm.NewProvider(ctx, cfg)
	if err != nil {
		return nil, cfg, fmt.Errorf("create LLM provider: %w", err)
	}
	gen, err := llm.NewGenerator(provider, v.GetString("subject"), cfg.MaxTokens, cfg.Temperature)
	if err != nil {
		return nil, cfg, fmt.Errorf("create generator: %w", err)
	}
	return gen, cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen, llmCfg, err := newGenerator(ctx, v)
	if err != nil {
		return err
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	appCfg := model.AppConfig{
		ExamSize:      v.GetInt("exam-size"),
		RequireExact:  v.GetBool("require-exact"),
		MaxFiles:      v.GetInt("max-files"),
		DefaultCounts: defaultCounts(v),
		Language:      v.GetString("question-lang"),
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
	}

	spaces := workspace.NewManager(workspace.Deps{
		Store:     db,
		Extractor: extract.New(),
		Generator: gen,
		Config:    appCfg,
		Timeout:   llmCfg.Timeout,
	})
	h := handler.New(db, spaces, appCfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if v.GetBool("metrics") {
		metrics.Init()
		r.Use(metrics.Middleware)
	}
	r.Use(appI18n.Middleware)
	if v.GetBool("metrics") {
		r.Handle("/metrics", metrics.Handler())
	}

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Group(func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
	}

	go cleanupSessions(ctx, db, time.Hour)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("starting server",
		"addr", addr,
		"provider", llmCfg.Provider,
		"model", llmCfg.Model,
		"lang", lang,
		"question_lang", appCfg.Language,
		"exam_size", appCfg.ExamSize,
		"require_exact", appCfg.RequireExact,
		"max_files", appCfg.MaxFiles,
		"base_path", basePath,
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
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func cleanupSessions(ctx context.Context, db *store.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.CleanupExpiredSessions()
			if err != nil {
				slog.Warn("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("removed expired sessions", "count", n)
			}
		}
	}
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or SLIDEQUIZ_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}

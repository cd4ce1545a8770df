package main

import (
	"context"
	"encoding/json"
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
	"github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/examforge/internal/answerkey"
	"github.com/pavelanni/examforge/internal/channel"
	"github.com/pavelanni/examforge/internal/exam"
	"github.com/pavelanni/examforge/internal/handler"
	appI18n "github.com/pavelanni/examforge/internal/i18n"
	"github.com/pavelanni/examforge/internal/llm"
	"github.com/pavelanni/examforge/internal/llm/prompts"
	"github.com/pavelanni/examforge/internal/model"
	"github.com/pavelanni/examforge/internal/parser"
	"github.com/pavelanni/examforge/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examforge",
		Short: "Generate, take and grade LLM-written exams",
	}

	serve := serveCmd()
	root.AddCommand(serve, parseCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examforge --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	addStoreFlags(cmd)
	f.String("channel", "memory", "Completion channel (memory, redis)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("ocr-model", "", "Vision model for answer images (defaults to llm-model)")
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.String("prompt-variant", string(prompts.PromptStandard), "Grading prompt variant (strict, standard, lenient)")
	f.String("default-duration", "60", "Exam duration when none is set (minutes, PT1H or 1h)")
	f.Duration("handoff-interval", 5*time.Second, "How often to check for unprocessed submissions")
	f.StringSlice("allowed-origins", nil, "Origins allowed to call the API cross-origin")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /exams)")
	f.Bool("skip-llm-check", false, "Do not check the LLM endpoint at startup")
	addLogFlags(cmd)
	return cmd
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse exam text and print the questions as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runParse,
	}
	cmd.Flags().Bool("weights", false, "Include the per-question weight map")
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export evaluation results as JSON",
		RunE:  runExport,
	}
	addStoreFlags(cmd)
	cmd.Flags().StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("store", "sqlite", "Storage backend (sqlite, mysql, redis, mongo)")
	f.String("db", "examforge.db", "SQLite database path")
	f.String("store-dsn", "", "MySQL DSN (user:pass@tcp(host:3306)/examforge)")
	f.String("redis-addr", "localhost:6379", "Redis address")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")
	f.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	f.String("mongo-database", "examforge", "MongoDB database name")
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
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

	v.SetEnvPrefix("EXAMFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examforge")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examforge")
	v.AddConfigPath("/etc/examforge")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func newRedisClient(v *viper.Viper) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     v.GetString("redis-addr"),
		Password: v.GetString("redis-password"),
		DB:       v.GetInt("redis-db"),
	})
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, v *viper.Viper) (store.KV, func(), error) {
	switch kind := strings.ToLower(v.GetString("store")); kind {
	case "", "sqlite":
		s, err := store.New(v.GetString("db"))
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return s, func() { s.Close() }, nil
	case "mysql":
		s, err := store.NewSQL("mysql", v.GetString("store-dsn"))
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		return s, func() { s.Close() }, nil
	case "redis":
		client := newRedisClient(v)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return store.NewRedis(client, "examforge:"), func() { client.Close() }, nil
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(v.GetString("mongo-uri")))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ping mongo: %w", err)
		}
		db := client.Database(v.GetString("mongo-database"))
		return store.NewMongo(db, "kv"), func() { _ = client.Disconnect(context.Background()) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", kind)
	}
}

func openChannel(v *viper.Viper) (channel.Channel, func(), error) {
	switch kind := strings.ToLower(v.GetString("channel")); kind {
	case "", "memory":
		return channel.NewMemory(64), func() {}, nil
	case "redis":
		client := newRedisClient(v)
		return channel.NewRedis(client, channel.DefaultRedisTopic), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown channel %q", kind)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, closeStore, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer closeStore()

	ch, closeChannel, err := openChannel(v)
	if err != nil {
		return err
	}
	defer closeChannel()

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	promptVariant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(promptVariant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", promptVariant)
		promptVariant = string(prompts.PromptStandard)
	}
	ps, err := prompts.Default()
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	defaultDuration, err := model.ParseExamDuration(v.GetString("default-duration"))
	if err != nil {
		return err
	}

	llmClient := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		v.GetString("ocr-model"),
	)
	if !v.GetBool("skip-llm-check") {
		if err := llmClient.Ping(ctx); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.ServerConfig{
		Lang:            lang,
		PromptVariant:   promptVariant,
		DefaultDuration: defaultDuration,
		HandoffInterval: v.GetDuration("handoff-interval"),
		BasePath:        basePath,
	}

	repo := store.NewRepository(kv)
	svc := exam.NewService(repo, llmClient, ps, ch, cfg)
	h := handler.New(svc, repo, handler.NewHub(), cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	var root http.Handler = r
	if origins := v.GetStringSlice("allowed-origins"); len(origins) > 0 {
		root = handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
		)(r)
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Run(gctx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("starting server",
		"addr", addr,
		"store", v.GetString("store"),
		"channel", v.GetString("channel"),
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"lang", lang,
		"prompt_variant", promptVariant,
		"default_duration", defaultDuration.Minutes(),
		"base_path", basePath,
	)
	return g.Wait()
}

type parseOutput struct {
	Questions []model.Question `json:"questions"`
	Weights   map[int]float64  `json:"weights,omitempty"`
}

func runParse(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	raw := string(data)
	questions := parser.Parse(raw)
	key := answerkey.Build(questions, raw, nil)
	out := parseOutput{Questions: key.Apply(questions)}
	if v.GetBool("weights") {
		out.Weights = key.Weights
	}
	slog.Debug("parsed exam", "path", args[0], "questions", len(questions))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	kv, closeStore, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer closeStore()

	export, err := store.NewRepository(kv).ExportResults(ctx)
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	slog.Info("exported results", "count", export.Count, "output", outPath)
	return nil
}

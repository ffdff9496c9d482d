package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/spf13/cobra"

	"github.com/promptline/elicitbridge/bridge"
	"github.com/promptline/elicitbridge/httpapi"
	"github.com/promptline/elicitbridge/intent"
	"github.com/promptline/elicitbridge/internal/logctx"
	"github.com/promptline/elicitbridge/mcpclient"
)

// config is populated from the environment; flags override.
type config struct {
	ListenAddr string `env:"ELICITBRIDGE_LISTEN,default=127.0.0.1:8000"`
	ServerURL  string `env:"MCP_SERVER_URL,default=http://127.0.0.1:8001/mcp"`
	RulesPath  string `env:"ELICITBRIDGE_INTENT_RULES"`
	LogLevel   string `env:"ELICITBRIDGE_LOG_LEVEL,default=info"`
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "elicitbridged",
		Short: "HTTP bridge between chat clients and an elicitation-capable MCP server",
		Long: `elicitbridged drives remote MCP tool calls on behalf of chat clients. When a
tool pauses mid-call to ask the human for more input, the pause surfaces as an
elicitation event on the session's ndjson stream; a later answer submission
resumes the suspended call.`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.AddCommand(newServeCommand())
	return rootCmd
}

func newServeCommand() *cobra.Command {
	var cfg config

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, &cfg)
		},
	}

	// Defaults come from the environment; explicit flags win.
	_ = envdecode.Decode(&cfg)
	cmd.Flags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "address to listen on")
	cmd.Flags().StringVar(&cfg.ServerURL, "server-url", cfg.ServerURL, "MCP server endpoint (streamable HTTP)")
	cmd.Flags().StringVar(&cfg.RulesPath, "intent-rules", cfg.RulesPath, "YAML intent rules file (built-in rules if empty)")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	return cmd
}

func serve(cmd *cobra.Command, cfg *config) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return err
	}
	log := slog.New(logctx.Handler{
		Handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	classifier := intent.Default()
	if cfg.RulesPath != "" {
		loaded, err := intent.Load(cfg.RulesPath)
		if err != nil {
			return err
		}
		classifier = loaded
		go func() {
			if err := classifier.Watch(ctx, cfg.RulesPath, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("serve.rules.watch.err", slog.String("err", err.Error()))
			}
		}()
	}

	mgr := bridge.NewManager(mcpclient.New(cfg.ServerURL), bridge.WithLogger(log))
	defer mgr.Close()

	handler := httpapi.New(mgr, classifier,
		httpapi.WithLogger(log),
		httpapi.WithServerURL(cfg.ServerURL),
	)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serve.listening",
		slog.String("addr", cfg.ListenAddr),
		slog.String("server_url", cfg.ServerURL))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

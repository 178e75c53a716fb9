// Package main is the entry point for the baobei CLI. baobei is a
// personality-conditioned AI companion: chat with her in the terminal, or run
// the WebSocket gateway and attach a messaging bridge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yctsai/baobei/internal/bot"
	"github.com/yctsai/baobei/internal/config"
	"github.com/yctsai/baobei/internal/gateway"
	"github.com/yctsai/baobei/internal/history"
	"github.com/yctsai/baobei/internal/llm"
	"github.com/yctsai/baobei/internal/onboarding"
	"github.com/yctsai/baobei/internal/orchestrator"
	"github.com/yctsai/baobei/internal/persona"
	"github.com/yctsai/baobei/internal/store"
	"github.com/yctsai/baobei/internal/trigger"
	"github.com/yctsai/baobei/internal/tui"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	log     zerolog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "baobei",
		Short: "baobei - AI girlfriend companion with provider fallback",
		Long: `baobei is a personality-conditioned AI companion.

She replies in character, reacts to photos you send, and sends back
generated photos of herself when the conversation calls for one.
Gemini answers first; OpenAI steps in when Gemini cannot.

Chat in the terminal:   baobei
Run the gateway:        baobei run
Check the setup:        baobei diag`,
		PersistentPreRunE: initLogging,
		RunE:              runChat,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.baobei/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("baobei v%s\n", version)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "chat",
		Short: "Chat with her in the terminal (same as running baobei with no arguments)",
		RunE:  runChat,
	})
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(diagCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command, args []string) error {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

// applyLogConfig layers the configured level and optional file sink onto the
// flag-initialized logger. --verbose wins over the configured level.
func applyLogConfig(cfg *config.Config) {
	if !verbose {
		if lvl, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			log = log.Level(lvl)
		}
	}
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.Logging.File).Msg("open log file")
			return
		}
		log = log.Output(zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stderr}, f))
	}
}

// buildEngine assembles the full conversation stack from configuration. The
// returned cleanup closes the history database.
func buildEngine(cfg *config.Config) (*bot.Engine, func(), error) {
	applyLogConfig(cfg)

	catalog := persona.NewCatalog()
	if cfg.AI.PersonaFile != "" {
		data, err := os.ReadFile(cfg.AI.PersonaFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read persona file: %w", err)
		}
		catalog, err = persona.FromYAML(data)
		if err != nil {
			return nil, nil, err
		}
	}

	st := store.NewFileStore(cfg.Store.Path, log)
	ob := onboarding.NewManager(st, catalog, log)
	orch := orchestrator.New(llm.NewProviders(cfg), cfg.AI.Provider, cfg.AI.ImageProvider, log)

	var recorder bot.Recorder
	cleanup := func() {}
	if cfg.History.Enabled {
		hs, err := history.Open(cfg.History.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open history store: %w", err)
		}
		recorder = hs
		cleanup = func() { hs.Close() }
	}

	engine := bot.New(orch, st, catalog, ob, trigger.Default(), recorder, bot.Options{
		SystemPrompt:   cfg.AI.SystemPrompt,
		GirlfriendName: cfg.AI.GirlfriendName,
	}, log)
	return engine, cleanup, nil
}

// runChat starts the interactive terminal chat.
func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// One stable identity per machine user keeps the relationship persistent
	// across sessions.
	userID := "local:" + localUserID()

	program := tea.NewProgram(tui.New(engine, userID),
		tea.WithAltScreen(),
		tea.WithOutput(termenv.NewOutput(os.Stdout)))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run chat: %w", err)
	}
	return nil
}

// localUserID derives a stable identity for the terminal chat, falling back
// to a random one when the OS username is unavailable.
func localUserID() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u := os.Getenv("USERNAME"); u != "" {
		return u
	}
	return uuid.NewString()
}

// runCmd serves the WebSocket chat gateway.
func runCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the WebSocket chat gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Gateway.Addr = addr
			}

			engine, cleanup, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return gateway.NewServer(engine, cfg.Gateway.Addr, log).ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

// configCmd shows the effective configuration with secrets masked.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.AI.Gemini.APIKey = maskKey(cfg.AI.Gemini.APIKey)
			cfg.AI.OpenAI.APIKey = maskKey(cfg.AI.OpenAI.APIKey)

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Print(string(data))
			return nil
		},
	})
	return cmd
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + strings.Repeat("*", 8) + key[len(key)-4:]
}

// historyCmd prints recent transcript entries for an identity.
func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <user-id>",
		Short: "Show recent conversation history for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			hs, err := history.Open(cfg.History.DataDir)
			if err != nil {
				return err
			}
			defer hs.Close()

			messages, err := hs.Recent(args[0], limit)
			if err != nil {
				return err
			}
			for i := len(messages) - 1; i >= 0; i-- {
				m := messages[i]
				fmt.Printf("[%s] %-9s %-6s %s\n",
					m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Role, m.Kind, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	return cmd
}

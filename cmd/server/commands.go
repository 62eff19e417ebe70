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
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vibin/wa-bridge/config"
	httpHandler "github.com/vibin/wa-bridge/internal/adapters/primary/http"
	"github.com/vibin/wa-bridge/internal/adapters/primary/whatsapp"
	"github.com/vibin/wa-bridge/internal/logger"
)

const shutdownTimeout = 10 * time.Second

type rootOptions struct {
	configPath string
	envFile    string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "server",
		Short:         "WhatsApp HTTP bridge with local LLM auto reply",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (JSON or YAML); defaults to $CONFIG_PATH when set")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Optional dotenv file with environment overrides")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the WhatsApp session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "pair",
		Short: "Link this device by scanning a QR code, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPair(cmd.Context(), opts)
		},
	})

	root.AddCommand(newConfigCmd(opts))

	return root
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to --config or $CONFIG_PATH",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				path = config.GetConfigPath()
			}
			if err := writeDefaultConfig(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(initCmd)

	return configCmd
}

// writeDefaultConfig saves DefaultConfig to path, refusing to replace an
// existing file unless force is set
func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

func newLogger(debug bool) *logger.SlogLogger {
	level := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if debug {
		level = slog.LevelDebug
	}
	return logger.New(level, os.Stdout)
}

// loadConfig resolves configuration from defaults, an optional file and the environment
func loadConfig(opts *rootOptions, log logger.Logger) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	path := opts.configPath
	explicit := path != "" || os.Getenv("CONFIG_PATH") != ""
	if path == "" {
		path = config.GetConfigPath()
	}

	cfg, err := config.LoadConfig(path)
	switch {
	case err == nil:
		log.Info("Loaded configuration", "path", path)
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		log.Info("Using default configuration", "missing", path)
		cfg = config.DefaultConfig()
	default:
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runServe(parent context.Context, opts *rootOptions) error {
	log := newLogger(opts.debug)
	log.Info("Starting WhatsApp bridge")

	cfg, err := loadConfig(opts, log)
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		return err
	}

	ctx, stop := signalContext(parent)
	defer stop()

	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize", "error", err)
		return err
	}
	defer app.Close()

	handler := httpHandler.NewHandler(app.messaging, app.assistant, app.whatsapp, cfg, app.metrics, log)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.Server.RequestTimeoutSeconds+10) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return app.whatsapp.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Bridge stopped with error", "error", err)
		return err
	}
	log.Info("Server exited")
	return nil
}

func runPair(parent context.Context, opts *rootOptions) error {
	log := newLogger(opts.debug)

	cfg, err := loadConfig(opts, log)
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		return err
	}
	cfg.WhatsApp.PrintQR = true

	ctx, stop := signalContext(parent)
	defer stop()

	adapter := whatsapp.NewWhatsAppAdapter(cfg, nil, log)
	defer adapter.Close()

	if err := adapter.Connect(ctx); err != nil {
		return err
	}
	if adapter.IsLoggedIn() {
		log.Info("Device is already paired")
	}
	if err := adapter.WaitForLogin(ctx); err != nil {
		return fmt.Errorf("pairing: %w", err)
	}
	log.Info("Device paired and connected")
	return nil
}

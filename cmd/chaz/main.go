// ABOUTME: Entry point for the chaz Matrix bot
// ABOUTME: Loads config, wires collaborators, and runs the sync loop

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/chaz/internal/admission"
	"github.com/2389/chaz/internal/backend"
	"github.com/2389/chaz/internal/bot"
	"github.com/2389/chaz/internal/config"
	"github.com/2389/chaz/internal/role"
	"github.com/2389/chaz/internal/room"
	"github.com/2389/chaz/internal/state"
)

const banner = `
    ╭──────────────────────────────╮
    │                              │
    │   ┏━╸╻ ╻┏━┓╺━┓               │
    │   ┃  ┣━┫┣━┫┏━┛               │
    │   ┗━╸╹ ╹╹ ╹┗━╸               │
    │                              │
    │   a Matrix conversation bot  │
    │                              │
    ╰──────────────────────────────╯
`

// getConfigPath returns the path to the chaz config file.
// Priority: CHAZ_CONFIG env var > XDG_CONFIG_HOME/chaz/config.yaml > ~/.config/chaz/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CHAZ_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "chaz", "config.yaml")
}

// getDataPath returns the path to the chaz data directory.
// Priority: XDG_DATA_HOME/chaz > ~/.local/share/chaz
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "chaz")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	configPath := getConfigPath()
	dataPath := getDataPath()
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	logger := setupLogger(cfg.Logging.Level)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:     %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Homeserver: %s\n", cfg.Matrix.Homeserver)
	green.Print("    ▶ ")
	fmt.Printf("User:       %s\n", cfg.Matrix.UserID)
	green.Print("    ▶ ")
	fmt.Printf("Backends:   %d\n", len(cfg.Backends))
	if cfg.Matrix.RecoveryKey != "" {
		green.Print("    ▶ ")
		fmt.Println("Encryption: enabled")
	}
	fmt.Println()

	gate, err := admission.New(cfg.Limits, logger)
	if err != nil {
		return fmt.Errorf("building admission gate: %w", err)
	}

	backends, err := backend.NewRegistry(cfg.Backends, logger)
	if err != nil {
		return fmt.Errorf("building backend registry: %w", err)
	}

	roles := role.NewCatalog(cfg.Roles, logger)

	var store room.Store
	if cfg.Database.Path != "" {
		sqlStore, err := state.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening state store: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	rooms := room.NewManager(cfg.Chat.DefaultRole, store, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rooms.Restore(ctx); err != nil {
		return fmt.Errorf("restoring room state: %w", err)
	}

	bridge, err := NewBridge(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	cryptoMgr, err := SetupCrypto(ctx, bridge.matrix, cfg.Matrix.UserID, cfg.Matrix.RecoveryKey, dataPath, logger)
	if err != nil {
		return fmt.Errorf("setting up encryption: %w", err)
	}
	if cryptoMgr != nil {
		defer cryptoMgr.Close()
	}

	bridge.bot = bot.New(bridge.transport, gate, rooms, backends, roles, cfg.Chat, logger)

	logger.Info("starting chaz")
	return bridge.Run(ctx)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

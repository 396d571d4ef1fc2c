package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"persai-chat/internal/adapter/backend"
	"persai-chat/internal/adapter/history"
	"persai-chat/internal/adapter/tui/chat"
	"persai-chat/internal/adapter/tui/theme"
	"persai-chat/internal/domain"
	"persai-chat/internal/infra/config"
	"persai-chat/internal/infra/logger"
	"persai-chat/internal/infra/tracer"
	"persai-chat/internal/usecase"
)

func main() {
	// Handle help flag first
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "sessions":
		if err := runSessions(); err != nil {
			fmt.Fprintf(os.Stderr, "sessions: %v\n", err)
			os.Exit(1)
		}
	case "encrypt":
		if err := runEncrypt(); err != nil {
			fmt.Fprintf(os.Stderr, "encrypt: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'perschat --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`perschat - Chat TUI for the persai metrics agent

USAGE:
    perschat [COMMAND] [FLAGS]

COMMANDS:
    sessions    List backend sessions and exit
    encrypt     Encrypt a secret for the config file
                Usage: perschat encrypt <value> (PERSCHAT_CONFIG_KEY must be set)

    (no command) - Launch the chat TUI

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml
    Environment: PERSCHAT_* variables override config

EXAMPLES:
    perschat                                  # Run with config.yaml
    perschat --config /path/to/config.yaml    # Run with custom config
    PERSCHAT_DATASOURCE_PATH=/data perschat   # Override the datasource
    perschat sessions                         # List backend sessions`)
}

func configPath() string {
	// Check --config flag in os.Args.
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("PERSCHAT_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func run() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Backend client
	client := backend.NewClient(cfg.Backend, log)

	// 4. Transcript history (optional)
	var store usecase.TranscriptStore
	if cfg.History.Enabled {
		sqlStore, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	// 5. Conversation driver
	conv := usecase.NewConversation(client, store, cfg.Backend.DatasourcePath, log)

	// 6. Resume the latest persisted session, if configured.
	if store != nil && cfg.History.Resume {
		if sessionID, err := store.LatestSession(ctx); err != nil {
			log.Warn("resume lookup failed", "error", err)
		} else if sessionID != "" {
			msgs, err := store.LoadMessages(ctx, sessionID)
			if err != nil {
				log.Warn("resume load failed", "session_id", sessionID, "error", err)
			} else {
				conv.Resume(sessionID, msgs)
				log.Info("session resumed", "session_id", sessionID, "messages", len(msgs))
			}
		}
	}

	// 7. TUI
	if cfg.UI.ASCIISymbols {
		os.Setenv("PERSCHAT_ASCII_SYMBOLS", "1")
		theme.InitSymbols()
	}
	model := chat.NewChatModel(chat.ChatModelDeps{
		Conversation: conv,
		Logger:       log,
		Markdown:     cfg.UI.Markdown,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	// Bridge conversation snapshots into the Bubble Tea event loop.
	conv.SetOnUpdate(func(msgs []domain.Message, streaming bool) {
		p.Send(chat.ConversationUpdateMsg{Messages: msgs, Streaming: streaming})
	})

	log.Info("perschat starting",
		"backend", cfg.Backend.BaseURL,
		"datasource", cfg.Backend.DatasourcePath,
		"history", cfg.History.Enabled,
	)

	_, err = p.Run()
	return err
}

// runSessions lists backend sessions without launching the TUI.
func runSessions() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	client := backend.NewClient(cfg.Backend, log)
	sessions, err := client.ListSessions(context.Background())
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Println("No backend sessions.")
		return nil
	}
	for _, s := range sessions {
		line := s.SessionID
		if s.SessionName != "" {
			line += "  " + s.SessionName
		}
		if s.StartedAt != "" {
			line += "  started " + s.StartedAt
		}
		fmt.Println(line)
	}
	return nil
}

// runEncrypt encrypts a secret value for use in the config file.
func runEncrypt() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: perschat encrypt <value>")
	}
	key := os.Getenv("PERSCHAT_CONFIG_KEY")
	if key == "" {
		return fmt.Errorf("PERSCHAT_CONFIG_KEY must be set")
	}
	enc, err := config.EncryptValue(os.Args[2], key)
	if err != nil {
		return err
	}
	fmt.Println("enc:" + enc)
	return nil
}

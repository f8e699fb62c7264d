package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roelfdiedericks/waclaw/internal/agent"
	"github.com/roelfdiedericks/waclaw/internal/bridge"
	"github.com/roelfdiedericks/waclaw/internal/channels/whatsapp"
	"github.com/roelfdiedericks/waclaw/internal/config"
	. "github.com/roelfdiedericks/waclaw/internal/logging"
	"github.com/roelfdiedericks/waclaw/internal/media"
	"github.com/roelfdiedericks/waclaw/internal/paths"
	"github.com/roelfdiedericks/waclaw/internal/session"
)

const version = "0.1.0"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("waclaw %s\n", version)
			return
		case "link":
			Init(DefaultConfig())
			if err := whatsapp.LinkDevice(); err != nil {
				fmt.Fprintf(os.Stderr, "pairing failed: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if err := run(); err != nil {
		L_fatal("waclaw failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	Init(&Config{
		Level:      logLevel(cfg.Log.Level),
		ShowCaller: true,
	})
	L_info("waclaw %s starting", version)

	sessionsPath, err := paths.SessionsPath()
	if err != nil {
		return err
	}
	sessions, err := session.NewStore(sessionsPath)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	mediaStore, err := media.NewStore(cfg.Media.Dir)
	if err != nil {
		return fmt.Errorf("failed to open media store: %w", err)
	}

	var invoker agent.Invoker
	switch cfg.Agent.Mode {
	case config.ModeHTTP:
		invoker = agent.NewHTTPInvoker(cfg.Agent.APIBase)
	default:
		invoker = agent.NewSubprocessInvoker(cfg.Agent.Binary, cfg.Agent.WorkingDir)
	}
	L_info("agent backend selected", "mode", invoker.Name())

	bot, err := whatsapp.New()
	if err != nil {
		return err
	}

	orch := bridge.New(bridge.Options{
		Transport:   bot,
		Sessions:    sessions,
		Invoker:     invoker,
		MediaStore:  mediaStore,
		OCR:         media.NewOCRClient(cfg.Agent.APIBase),
		MaxChunkLen: cfg.Chat.MaxChunkLen,
		AllowSelf:   cfg.Chat.AllowSelf,
		Connected:   bot.Connected,
	})
	bot.SetHandler(orch.HandleEvent)

	if err := bot.Start(); err != nil {
		return err
	}

	L_info("waclaw ready", "sessions", sessions.Count())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	SetShuttingDown()
	bot.Stop()
	if err := sessions.Close(); err != nil {
		L_warn("failed to flush sessions on shutdown", "error", err)
	}
	L_info("waclaw stopped")
	return nil
}

func logLevel(name string) int {
	switch name {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

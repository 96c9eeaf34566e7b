package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/bikerent/internal/app"
	"github.com/nhle/bikerent/internal/credential"
	"github.com/nhle/bikerent/internal/model"
	"github.com/nhle/bikerent/internal/session"
	"github.com/nhle/bikerent/internal/socket"
	"github.com/nhle/bikerent/internal/store"
)

func main() {
	var (
		configPath string
		logPath    string
	)
	flag.StringVar(&configPath, "config", model.DefaultConfigPath(), "path to the YAML config file")
	flag.StringVar(&logPath, "log", "", "write logs to this file (default: discard)")
	flag.Parse()

	if err := run(configPath, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "bikerent: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logPath string) error {
	// The terminal belongs to the UI, so logs go to a file or nowhere.
	if logPath != "" {
		f, err := tea.LogToFile(logPath, "bikerent")
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	db, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	vault, err := credential.Open()
	if err != nil {
		return err
	}

	var mgr *session.Manager
	sc := session.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: time.Duration(cfg.API.TimeoutSec) * time.Second,
		Cache:   db,
		Secrets: vault,
	}
	if cfg.Socket.URL != "" {
		hub := socket.NewHub(cfg.Socket.URL,
			socket.WithReconnectDelay(time.Duration(cfg.Socket.ReconnectSec)*time.Second),
			socket.WithTokenSource(func() string { return mgr.AccessToken() }),
		)
		defer hub.Close()
		sc.Pusher = hub
	}

	mgr, err = session.NewManager(sc)
	if err != nil {
		return err
	}

	log.Printf("starting against %s", cfg.API.BaseURL)

	root := app.New(mgr, mgr.Client(), time.Duration(cfg.Notifications.PollSec)*time.Second)
	if _, err := tea.NewProgram(root, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

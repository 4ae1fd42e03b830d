package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openwidget/chat/pkg/api"
	"github.com/openwidget/chat/pkg/chat"
	"github.com/openwidget/chat/pkg/config"
	"github.com/openwidget/chat/pkg/metrics"
	"github.com/openwidget/chat/pkg/notify"
	"github.com/openwidget/chat/pkg/storage"
	"github.com/openwidget/chat/pkg/transport"
)

var Version = "dev"

func main() {
	configPath := flag.String("config", "~/.openwidget/chat.toml", "path to config file")
	gatewayURL := flag.String("gateway", "", "override the gateway websocket URL")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *gatewayURL != "" {
		cfg.Gateway.URL = *gatewayURL
	}

	logger, closeLog, err := openLogger(cfg.Logging.File)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer closeLog()
	logger.Printf("openwidget chat %s starting", Version)

	dataDir, err := config.ExpandPath(cfg.Chat.DataDir)
	if err != nil {
		log.Fatalf("Failed to resolve data dir: %v", err)
	}
	store, err := storage.Open(filepath.Join(dataDir, "chat.db"))
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	conn := transport.New()
	conn.SetLogger(logger)
	defer conn.Close()

	webAPI, err := api.New(cfg.Gateway.APIBase, nil, logger)
	if err != nil {
		log.Fatalf("Failed to create API client: %v", err)
	}

	var counters chat.Counters
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		counters = metrics.New(reg)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				logger.Printf("metrics listener failed: %v", err)
			}
		}()
	}

	model := newModel(modelConfig{
		logger:    logger,
		conn:      conn,
		store:     store,
		api:       webAPI,
		counters:  counters,
		notifier:  notify.New(cfg.Chat.IconPath, logger),
		emotes:    cfg.Emotes.Names,
		suffixes:  cfg.Emotes.Suffixes,
		gateway:   cfg.Gateway.URL,
		backlog:   cfg.Chat.BacklogLines,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openLogger(path string) (*log.Logger, func(), error) {
	if path == "" {
		return log.New(os.Stderr, "", log.LstdFlags), func() {}, nil
	}
	path, err := config.ExpandPath(path)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return log.New(f, "", log.LstdFlags), func() { f.Close() }, nil
}

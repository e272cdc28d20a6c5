package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/consolecowboy0/iracing-mcp-server/internal/config"
	"github.com/consolecowboy0/iracing-mcp-server/internal/history"
	"github.com/consolecowboy0/iracing-mcp-server/internal/monitor"
	"github.com/consolecowboy0/iracing-mcp-server/internal/race"
	"github.com/consolecowboy0/iracing-mcp-server/internal/rpc"
	"github.com/consolecowboy0/iracing-mcp-server/internal/session"
	"github.com/consolecowboy0/iracing-mcp-server/internal/telemetry"
)

func main() {
	simulated := flag.Bool("simulated", false, "Use the scripted demo telemetry source")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	// Optional .env for local overrides; absence is normal.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	var source telemetry.Source
	if *simulated {
		log.Println("Starting with simulated telemetry")
		source = telemetry.NewSimulated()
	} else {
		source = telemetry.NewCollector(newSimConn(), cfg.Telemetry.SimProcess)
	}

	if cfg.Telemetry.ConnectOnStart || *simulated {
		if err := source.Connect(); err != nil {
			log.Printf("Initial telemetry connect failed (tools can retry): %v", err)
		}
	}

	var passes history.Log
	if cfg.History.Path != "" {
		passes, err = history.Open(cfg.History.Path)
		if err != nil {
			log.Fatalf("Failed to open pass history: %v", err)
		}
		defer passes.Close()
	} else {
		passes = history.NewMemory()
	}

	registry := session.NewRegistry()
	broadcaster := session.NewBroadcaster(registry, cfg.Notify.SendTimeout)
	tracker := race.NewTracker()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon := monitor.NewMonitor(source, tracker, broadcaster, passes, cfg.Telemetry.PollInterval)
	go mon.Start(ctx)

	tools := rpc.NewTools(source, passes, cfg.Telemetry.NearbyCars)
	server := rpc.NewServer(registry, tools, source, tracker, passes, cfg.Server.AuthToken)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		source.Disconnect()
		os.Exit(0)
	}()

	if err := rpc.ListenAndServe(cfg.Server.Host, cfg.Server.Port, server.Router()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

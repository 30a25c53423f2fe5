package main

import (
	"log"
	"os"

	"github.com/Godeaux/Godot-AI-Bridge/config"
	"github.com/Godeaux/Godot-AI-Bridge/logger"
	"github.com/Godeaux/Godot-AI-Bridge/tools/utility"
	"github.com/Godeaux/Godot-AI-Bridge/transport/http"
)

func main() {
	// Load configuration
	configPath, err := config.GetConfigPath()
	if err != nil {
		log.Fatalf("Failed to resolve config path: %+v", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %+v", err)
	}

	// Check for debug mode
	if os.Getenv("MCP_DEBUG") == "true" {
		cfg.Server.Debug = true
		log.Println("Debug mode enabled via MCP_DEBUG environment variable")
	}

	// Initialize logger
	if err := logger.Init(logger.GetLevelFromString(cfg.Logging.Level), logger.Format(cfg.Logging.Format), cfg.Logging.Path); err != nil {
		log.Fatalf("Failed to initialize logger: %+v", err)
	}

	// Point the editor-runtime tools at the runtime bridge process.
	utility.ConfigureRuntimeBridge(cfg.RuntimeBridge.Host, cfg.RuntimeBridge.Port)

	// Create and start server
	server := http.NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

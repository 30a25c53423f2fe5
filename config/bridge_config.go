package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// BridgeConfig is the runtime bridge binary's own configuration, loaded and
// overridden the same way Config is (JSON file + env overrides) but kept
// entirely separate: the bridge is a different process from the MCP server
// and has no use for PromptCatalog/Transports.
type BridgeConfig struct {
	Runtime    RuntimeEndpoint  `json:"runtime"`
	Editor     EditorEndpoint   `json:"editor"`
	Snapshot   SnapshotBounds   `json:"snapshot"`
	Screenshot ScreenshotBudget `json:"screenshot"`
	Events     EventBuffer      `json:"events"`
	Connection ConnectionLimits `json:"connection"`
}

// RuntimeEndpoint is the address the bridge's HTTP surface binds to.
type RuntimeEndpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// EditorEndpoint is the editor-facing MCP server's port, recorded here so
// the bridge can report it via GET /info without a second config file.
type EditorEndpoint struct {
	Port int `json:"port"`
}

// SnapshotBounds bounds GET /snapshot's tree walk.
type SnapshotBounds struct {
	MaxDepth     int `json:"max_depth"`
	MaxNodeCount int `json:"max_node_count"`
}

// ScreenshotBudget bounds the screenshot pipeline's default dimensions and
// encode budget.
type ScreenshotBudget struct {
	DefaultWidth    int     `json:"default_width"`
	DefaultHeight   int     `json:"default_height"`
	DefaultQuality  float64 `json:"default_quality"`
	MaxBase64Length int     `json:"max_base64_length"`
}

// EventBuffer bounds the event accumulator's buffer.
type EventBuffer struct {
	MaxBuffered int `json:"max_buffered"`
}

// ConnectionLimits bounds per-connection lifetime.
type ConnectionLimits struct {
	TimeoutSeconds int `json:"timeout_seconds"`
}

// NewBridgeConfig creates a BridgeConfig with spec.md §6's documented
// defaults.
func NewBridgeConfig() *BridgeConfig {
	return &BridgeConfig{
		Runtime: RuntimeEndpoint{
			Host: "localhost",
			Port: 9900,
		},
		Editor: EditorEndpoint{
			Port: 9899,
		},
		Snapshot: SnapshotBounds{
			MaxDepth:     12,
			MaxNodeCount: 2000,
		},
		Screenshot: ScreenshotBudget{
			DefaultWidth:    0, // 0 means "viewport size"
			DefaultHeight:   0,
			DefaultQuality:  0.85,
			MaxBase64Length: 1_500_000,
		},
		Events: EventBuffer{
			MaxBuffered: 200,
		},
		Connection: ConnectionLimits{
			TimeoutSeconds: 30,
		},
	}
}

// LoadBridgeConfig loads the runtime bridge configuration from a file,
// applies env overrides, normalizes, and validates it.
func LoadBridgeConfig(path string) (*BridgeConfig, error) {
	cfg := NewBridgeConfig()

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("bridge config file not found: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyBridgeEnvOverrides(cfg)
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveBridgeConfig writes cfg to path, creating parent directories as
// needed.
func SaveBridgeConfig(cfg *BridgeConfig, path string) error {
	if cfg == nil {
		return errors.New("bridge config cannot be nil")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid bridge config: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bridge config: %v", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create bridge config directory: %v", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write bridge config file: %v", err)
	}

	return nil
}

func applyBridgeEnvOverrides(cfg *BridgeConfig) {
	if host := os.Getenv("RUNTIME_BRIDGE_HOST"); host != "" {
		cfg.Runtime.Host = host
	}

	if portStr := os.Getenv("RUNTIME_BRIDGE_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Runtime.Port = port
		} else {
			log.Printf("warning: ignoring invalid RUNTIME_BRIDGE_PORT value %q: %v", portStr, err)
		}
	}

	if portStr := os.Getenv("RUNTIME_BRIDGE_EDITOR_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Editor.Port = port
		} else {
			log.Printf("warning: ignoring invalid RUNTIME_BRIDGE_EDITOR_PORT value %q: %v", portStr, err)
		}
	}

	if depthStr := os.Getenv("RUNTIME_BRIDGE_SNAPSHOT_MAX_DEPTH"); depthStr != "" {
		if depth, err := strconv.Atoi(depthStr); err == nil {
			cfg.Snapshot.MaxDepth = depth
		} else {
			log.Printf("warning: ignoring invalid RUNTIME_BRIDGE_SNAPSHOT_MAX_DEPTH value %q: %v", depthStr, err)
		}
	}

	if countStr := os.Getenv("RUNTIME_BRIDGE_SNAPSHOT_MAX_NODE_COUNT"); countStr != "" {
		if count, err := strconv.Atoi(countStr); err == nil {
			cfg.Snapshot.MaxNodeCount = count
		} else {
			log.Printf("warning: ignoring invalid RUNTIME_BRIDGE_SNAPSHOT_MAX_NODE_COUNT value %q: %v", countStr, err)
		}
	}

	if widthStr := os.Getenv("RUNTIME_BRIDGE_SCREENSHOT_DEFAULT_WIDTH"); widthStr != "" {
		if width, err := strconv.Atoi(widthStr); err == nil {
			cfg.Screenshot.DefaultWidth = width
		} else {
			log.Printf("warning: ignoring invalid RUNTIME_BRIDGE_SCREENSHOT_DEFAULT_WIDTH value %q: %v", widthStr, err)
		}
	}

	if heightStr := os.Getenv("RUNTIME_BRIDGE_SCREENSHOT_DEFAULT_HEIGHT"); heightStr != "" {
		if height, err := strconv.Atoi(heightStr); err == nil {
			cfg.Screenshot.DefaultHeight = height
		} else {
			log.Printf("warning: ignoring invalid RUNTIME_BRIDGE_SCREENSHOT_DEFAULT_HEIGHT value %q: %v", heightStr, err)
		}
	}

	if qualityStr := os.Getenv("RUNTIME_BRIDGE_SCREENSHOT_DEFAULT_QUALITY"); qualityStr != "" {
		if quality, err := strconv.ParseFloat(qualityStr, 64); err == nil {
			cfg.Screenshot.DefaultQuality = quality
		} else {
			log.Printf("warning: ignoring invalid RUNTIME_BRIDGE_SCREENSHOT_DEFAULT_QUALITY value %q: %v", qualityStr, err)
		}
	}

	if lengthStr := os.Getenv("RUNTIME_BRIDGE_SCREENSHOT_MAX_BASE64_LENGTH"); lengthStr != "" {
		if length, err := strconv.Atoi(lengthStr); err == nil {
			cfg.Screenshot.MaxBase64Length = length
		} else {
			log.Printf("warning: ignoring invalid RUNTIME_BRIDGE_SCREENSHOT_MAX_BASE64_LENGTH value %q: %v", lengthStr, err)
		}
	}

	if bufferedStr := os.Getenv("RUNTIME_BRIDGE_EVENTS_MAX_BUFFERED"); bufferedStr != "" {
		if buffered, err := strconv.Atoi(bufferedStr); err == nil {
			cfg.Events.MaxBuffered = buffered
		} else {
			log.Printf("warning: ignoring invalid RUNTIME_BRIDGE_EVENTS_MAX_BUFFERED value %q: %v", bufferedStr, err)
		}
	}

	if timeoutStr := os.Getenv("RUNTIME_BRIDGE_CONNECTION_TIMEOUT_SECONDS"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			cfg.Connection.TimeoutSeconds = timeout
		} else {
			log.Printf("warning: ignoring invalid RUNTIME_BRIDGE_CONNECTION_TIMEOUT_SECONDS value %q: %v", timeoutStr, err)
		}
	}
}

// Normalize canonicalizes config values so downstream validation and
// runtime logic operate on stable representations.
func (c *BridgeConfig) Normalize() {
	c.Runtime.Host = strings.TrimSpace(c.Runtime.Host)
	if c.Runtime.Host == "" {
		c.Runtime.Host = "localhost"
	}
	if c.Snapshot.MaxDepth <= 0 {
		c.Snapshot.MaxDepth = 12
	}
	if c.Snapshot.MaxNodeCount <= 0 {
		c.Snapshot.MaxNodeCount = 2000
	}
	if c.Screenshot.DefaultQuality <= 0 {
		c.Screenshot.DefaultQuality = 0.85
	}
	if c.Screenshot.MaxBase64Length <= 0 {
		c.Screenshot.MaxBase64Length = 1_500_000
	}
	if c.Events.MaxBuffered <= 0 {
		c.Events.MaxBuffered = 200
	}
	if c.Connection.TimeoutSeconds <= 0 {
		c.Connection.TimeoutSeconds = 30
	}
}

// Validate checks that the configuration is usable.
func (c *BridgeConfig) Validate() error {
	if c.Runtime.Port <= 0 || c.Runtime.Port > 65535 {
		return errors.New("invalid runtime port number")
	}
	if c.Editor.Port <= 0 || c.Editor.Port > 65535 {
		return errors.New("invalid editor port number")
	}
	if c.Runtime.Host == "" {
		return errors.New("runtime host cannot be empty")
	}
	if c.Snapshot.MaxDepth <= 0 {
		return errors.New("snapshot max_depth must be positive")
	}
	if c.Snapshot.MaxNodeCount <= 0 {
		return errors.New("snapshot max_node_count must be positive")
	}
	if c.Screenshot.DefaultQuality <= 0 || c.Screenshot.DefaultQuality > 1 {
		return fmt.Errorf("invalid screenshot default_quality %v: expected range (0, 1]", c.Screenshot.DefaultQuality)
	}
	if c.Screenshot.MaxBase64Length <= 0 {
		return errors.New("screenshot max_base64_length must be positive")
	}
	if c.Events.MaxBuffered <= 0 {
		return errors.New("events max_buffered must be positive")
	}
	if c.Connection.TimeoutSeconds <= 0 {
		return errors.New("connection timeout_seconds must be positive")
	}
	return nil
}

// ResolveBridgeConfigPath returns the path that should be used for the
// runtime bridge's configuration, following Config's own resolution order.
func ResolveBridgeConfigPath() (string, error) {
	if path := strings.TrimSpace(os.Getenv("RUNTIME_BRIDGE_CONFIG_PATH")); path != "" {
		return path, nil
	}

	if _, err := os.Stat("config/runtime_bridge_config.json"); err == nil {
		return "config/runtime_bridge_config.json", nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".godot-mcp", "config", "runtime_bridge_config.json"), nil
}

// EnsureDefaultBridgeConfig creates a default bridge config file if one does
// not already exist at path.
func EnsureDefaultBridgeConfig(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("bridge config path cannot be empty")
	}

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat bridge config file: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create bridge config directory: %w", err)
	}

	defaultConfig := NewBridgeConfig()
	defaultConfig.Normalize()
	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal default bridge config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write default bridge config: %w", err)
	}

	return nil
}

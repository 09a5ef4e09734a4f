package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"github.com/mroxso/nostr-debug/internal/relay"
)

// RelaysConfig represents the JSON configuration for the preloaded relay list
type RelaysConfig struct {
	DefaultRelays []string `json:"defaultRelays"`
}

var (
	relaysConfig     *RelaysConfig
	relaysConfigOnce sync.Once
)

// GetRelaysConfig returns the relays configuration, loading it once
func GetRelaysConfig() *RelaysConfig {
	relaysConfigOnce.Do(func() {
		relaysConfig = loadRelaysConfigFromFile()
	})
	return relaysConfig
}

func loadRelaysConfigFromFile() *RelaysConfig {
	configPath := os.Getenv("RELAYS_CONFIG")
	if configPath == "" {
		configPath = "config/relays.json"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("config file not found, using defaults", "path", configPath)
		} else {
			slog.Warn("could not read config, using defaults", "path", configPath, "error", err)
		}
		return getDefaultRelaysConfig()
	}

	var config RelaysConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Error("invalid JSON in config, using defaults", "path", configPath, "error", err)
		return getDefaultRelaysConfig()
	}

	slog.Info("loaded relays configuration", "path", configPath, "default", len(config.DefaultRelays))
	return &config
}

// getDefaultRelaysConfig returns the embedded default configuration
func getDefaultRelaysConfig() *RelaysConfig {
	return &RelaysConfig{
		DefaultRelays: []string{
			"wss://relay.damus.io",
			"wss://relay.nostr.band",
			"wss://nos.lol",
		},
	}
}

// preloadRelays registers the configured relay list, disconnected, so
// the console starts with something to connect to.
func preloadRelays(reg *relay.Registry) {
	for _, url := range GetRelaysConfig().DefaultRelays {
		if _, err := reg.Add(url); err != nil {
			slog.Warn("skipping preconfigured relay", "relay", url, "error", err)
		}
	}
}

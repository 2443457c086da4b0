// pigeonctl is a terminal client for a Pigeon server: account management,
// roster and history queries, sending, and a live watch mode.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"pigeon/cmd/internal/chatclient"
)

// Config is the CLI state stored in ~/.pigeonctl/config.toml.
type Config struct {
	Server ConfigServer `toml:"server"`
	Auth   ConfigAuth   `toml:"auth"`
}

type ConfigServer struct {
	BaseURL string `toml:"base_url"`
}

type ConfigAuth struct {
	Token    string `toml:"token"`
	UserID   string `toml:"user_id"`
	Username string `toml:"username"`
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".pigeonctl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return dir, nil
}

func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// loadConfig reads the config file; a missing file yields a zero Config.
func loadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return &cfg, nil
}

func saveConfig(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// serverURL resolves the base URL: flag wins over config, config over default.
func serverURL(cfg *Config) string {
	if flagServer != "" {
		return flagServer
	}
	if cfg.Server.BaseURL != "" {
		return cfg.Server.BaseURL
	}
	return "http://127.0.0.1:8080"
}

// apiClient builds an authenticated client or fails with a login hint.
func apiClient(cfg *Config) (*chatclient.Client, error) {
	if strings.TrimSpace(cfg.Auth.Token) == "" {
		return nil, errors.New("not logged in: run 'pigeonctl login <username>' first")
	}
	return chatclient.NewClient(serverURL(cfg), cfg.Auth.Token), nil
}

var flagServer string

var rootCmd = &cobra.Command{
	Use:           "pigeonctl",
	Short:         "Chat with a Pigeon server from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "server base URL (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

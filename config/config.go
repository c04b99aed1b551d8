// Package config loads server settings from config.json next to the
// binary, with environment variables taking precedence. The vault
// location can be rewritten at runtime via the settings endpoint; the
// board file binding is picked up on the next start.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

const (
	DefaultListenAddr   = ":7783"
	DefaultBoardFile    = "Meticulous/Board.md"
	DefaultDebounce     = 300 * time.Millisecond
	DefaultPollInterval = 2 * time.Second
)

// Config is the resolved server configuration.
type Config struct {
	VaultPath    string
	BoardFile    string
	ListenAddr   string
	Debounce     time.Duration
	PollInterval time.Duration
}

// BoardPath joins the vault and the board file's relative path.
func (c Config) BoardPath() string {
	return filepath.Join(c.VaultPath, filepath.FromSlash(c.BoardFile))
}

// fileConfig is the on-disk shape, kept compatible with hand-edited
// config.json files that only name the vault.
type fileConfig struct {
	VaultPath string `json:"vault_path"`
	BoardFile string `json:"board_file"`
}

// Manager holds the live configuration and persists vault changes
// back to config.json.
type Manager struct {
	path string

	mu  sync.Mutex
	cfg Config
}

// Load resolves configuration in order: defaults, config.json at
// path (if present), then environment variables. Invalid durations
// and ports fail loudly rather than being silently ignored.
func Load(path string) (*Manager, error) {
	cfg := Config{
		VaultPath:    defaultVault(),
		BoardFile:    DefaultBoardFile,
		ListenAddr:   DefaultListenAddr,
		Debounce:     DefaultDebounce,
		PollInterval: DefaultPollInterval,
	}

	if data, err := os.ReadFile(path); err == nil {
		var fc fileConfig
		if err := sonic.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if fc.VaultPath != "" {
			cfg.VaultPath = fc.VaultPath
		}
		if fc.BoardFile != "" {
			cfg.BoardFile = fc.BoardFile
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if v := os.Getenv("VAULT_PATH"); v != "" {
		cfg.VaultPath = v
	}
	if v := os.Getenv("BOARD_FILE"); v != "" {
		cfg.BoardFile = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	} else if v := os.Getenv("PORT"); v != "" {
		cfg.ListenAddr = ":" + v
	}
	if v := os.Getenv("DEBOUNCE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid DEBOUNCE_INTERVAL %q", v)
		}
		cfg.Debounce = d
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid POLL_INTERVAL %q", v)
		}
		cfg.PollInterval = d
	}

	return &Manager{path: path, cfg: cfg}, nil
}

// Current returns a copy of the live configuration.
func (m *Manager) Current() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Update persists a new vault binding to config.json. Empty fields
// keep their current value. The returned Config is the persisted
// state; callers that already hold an open board file keep it until
// restart.
func (m *Manager) Update(vaultPath, boardFile string) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if vaultPath != "" {
		m.cfg.VaultPath = vaultPath
	}
	if boardFile != "" {
		m.cfg.BoardFile = boardFile
	}
	data, err := sonic.MarshalIndent(fileConfig{VaultPath: m.cfg.VaultPath, BoardFile: m.cfg.BoardFile}, "", "  ")
	if err != nil {
		return Config{}, fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(m.path, append(data, '\n'), 0o644); err != nil {
		return Config{}, fmt.Errorf("write %s: %w", m.path, err)
	}
	return m.cfg, nil
}

func defaultVault() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Obsidian"
	}
	return filepath.Join(home, "Documents", "Obsidian")
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/muurk/postoffice/internal/discovery"
	"github.com/muurk/postoffice/internal/server"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "postoffice"
	configFile = "config.yaml"
)

// ErrUnsupportedVersion is returned when a config file has a version this
// build does not understand.
var ErrUnsupportedVersion = errors.New("unsupported config version")

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/postoffice or $HOME/.config/postoffice
//   - macOS: $HOME/.config/postoffice (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\postoffice
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the default configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// resolvePath returns path, or the default config path when path is empty.
func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return GetConfigPath()
}

// Load reads the configuration file at path (empty = default location).
// A missing file is not an error: the defaults are returned instead.
// Sections absent from the file take their default values.
func Load(path string) (*File, error) {
	configPath, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	file.fillDefaults()

	if err := file.Validate(); err != nil {
		return nil, err
	}

	return &file, nil
}

// Validate checks the version and value ranges.
func (f *File) Validate() error {
	if f.Version != CurrentVersion {
		return fmt.Errorf("%w: %d (expected %d)", ErrUnsupportedVersion, f.Version, CurrentVersion)
	}
	if f.Server != nil && (f.Server.Port < 0 || f.Server.Port > 65535) {
		return fmt.Errorf("invalid server port %d: must be between 0 and 65535", f.Server.Port)
	}
	if f.Advertise != nil && f.Advertise.Enabled {
		if err := f.DiscoveryConfig().Validate(); err != nil {
			return fmt.Errorf("invalid advertise section: %w", err)
		}
	}
	return nil
}

// Save writes the configuration to path (empty = default location).
// Performs an atomic write to prevent corruption on crash.
func (f *File) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	configPath, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := f.Marshal()
	if err != nil {
		return err
	}

	header := []byte(`# postoffice configuration file
#
# server.port 0 lets the operating system pick a free port.
# logging.level may be debug, info, warn or error; empty disables logging.
#
# Location: ` + configPath + `

`)
	data = append(header, data...)

	// Write to temporary file first (atomic write)
	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, configPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// Marshal encodes the configuration as YAML.
func (f *File) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// ServerConfig converts the file into the server package's configuration.
func (f *File) ServerConfig(logger *zap.Logger) *server.Config {
	f.fillDefaults()
	return &server.Config{
		Name:           f.Server.Name,
		Host:           f.Server.Host,
		Port:           f.Server.Port,
		Logger:         logger,
		RecvBufferSize: f.Server.RecvBuffer,
	}
}

// LogLevel returns the configured log level.
func (f *File) LogLevel() string {
	if f.Logging == nil {
		return ""
	}
	return strings.TrimSpace(f.Logging.Level)
}

// DiscoveryConfig converts the advertise section into a discovery.Config.
func (f *File) DiscoveryConfig() discovery.Config {
	f.fillDefaults()
	return discovery.Config{
		Instance: f.Advertise.Instance,
		Service:  f.Advertise.Service,
		Domain:   f.Advertise.Domain,
		Text:     f.Advertise.Text,
	}
}

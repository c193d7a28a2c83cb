package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	configFileName = "config.toml"
	dbFileName     = "sellerpulse.db"
)

// AppConfig application config.
type AppConfig struct {
	Server ServerConfig `toml:"server"`
	Data   DataConfig   `toml:"data"`
	Log    LogConfig    `toml:"log"`
	Import ImportConfig `toml:"import"`
	Export ExportConfig `toml:"export"`
}

// ServerConfig HTTP server config.
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
}

// DataConfig data directory, relative paths resolve against the executable.
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// LogConfig logger setup.
type LogConfig struct {
	Env   string `toml:"env"`
	Level string `toml:"level"`
}

// ImportConfig upload limits.
type ImportConfig struct {
	MaxUploadMB int `toml:"max_upload_mb"`
}

// ExportConfig optional workbook used as the base for exports.
type ExportConfig struct {
	TemplatePath string `toml:"template_path"`
}

// LoadConfigInfo metadata about where the config came from.
type LoadConfigInfo struct {
	Path      string
	FileFound bool
}

// DefaultConfig default config.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    20262,
			DevMode: false,
		},
		Data: DataConfig{
			DataDir: "data",
		},
		Log: LogConfig{
			Env:   "production",
			Level: "info",
		},
		Import: ImportConfig{
			MaxUploadMB: 50,
		},
	}
}

// GetExeDir directory of the running executable.
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

func baseDir() string {
	dir, err := GetExeDir()
	if err != nil {
		return "."
	}
	return dir
}

// LoadConfigWithInfo loads config.toml next to the executable.
func LoadConfigWithInfo() (*AppConfig, LoadConfigInfo, error) {
	return LoadConfigFrom(baseDir())
}

// LoadConfigFrom loads dir/config.toml, then dir/.env and the process
// environment. A missing file yields defaults.
func LoadConfigFrom(dir string) (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{Path: filepath.Join(dir, configFileName)}
	config := DefaultConfig()

	data, err := os.ReadFile(info.Path)
	switch {
	case err == nil:
		info.FileFound = true
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, info, fmt.Errorf("failed to parse %s: %w", info.Path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, info, err
	}

	// .env never overrides variables already set in the environment
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, info, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnv(config); err != nil {
		return nil, info, err
	}
	return config, info, nil
}

func applyEnv(config *AppConfig) error {
	if v := os.Getenv("SELLERPULSE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SELLERPULSE_PORT %q: %w", v, err)
		}
		config.Server.Port = port
	}
	if v := os.Getenv("SELLERPULSE_DATA_DIR"); v != "" {
		config.Data.DataDir = v
	}
	if v := os.Getenv("SELLERPULSE_ENV"); v != "" {
		config.Log.Env = v
	}
	if v := os.Getenv("SELLERPULSE_LOG_LEVEL"); v != "" {
		config.Log.Level = v
	}
	if v := os.Getenv("SELLERPULSE_EXPORT_TEMPLATE"); v != "" {
		config.Export.TemplatePath = v
	}
	return nil
}

// SaveConfig writes config.toml next to the executable.
func SaveConfig(config *AppConfig) error {
	return SaveConfigTo(baseDir(), config)
}

// SaveConfigTo writes dir/config.toml.
func SaveConfigTo(dir string, config *AppConfig) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	return writeBytesAtomic(filepath.Join(dir, configFileName), data)
}

func writeBytesAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// DataDir absolute data directory.
func DataDir(config *AppConfig) string {
	if filepath.IsAbs(config.Data.DataDir) {
		return config.Data.DataDir
	}
	return filepath.Join(baseDir(), config.Data.DataDir)
}

// EnsureDataDir creates the data directory and returns it.
func EnsureDataDir(config *AppConfig) (string, error) {
	dataDir := DataDir(config)
	if err := os.MkdirAll(filepath.Join(dataDir, "exports"), 0755); err != nil {
		return "", err
	}
	return dataDir, nil
}

// DBPath SQLite database file inside the data directory.
func DBPath(config *AppConfig) string {
	return filepath.Join(DataDir(config), dbFileName)
}

// MaxUploadBytes upload size limit in bytes.
func (c *AppConfig) MaxUploadBytes() int64 {
	if c.Import.MaxUploadMB <= 0 {
		return 50 << 20
	}
	return int64(c.Import.MaxUploadMB) << 20
}

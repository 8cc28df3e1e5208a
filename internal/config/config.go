package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Feed provider kinds for the client-side update configuration.
const (
	ProviderHostedIndex = "hosted-index"
	ProviderGeneric     = "generic"
	ProviderBucket      = "bucket"
	ProviderCustom      = "custom"
)

// Publish provider kinds for the build pipeline.
const (
	PublishNone  = "none"
	PublishLocal = "local"
	PublishS3    = "s3"
	PublishGCS   = "gcs"
	PublishAzure = "azure"
	PublishB2    = "b2"
)

// CacheEnvVar overrides the build pipeline cache root.
const CacheEnvVar = "HELIX_DELTA_CACHE"

type Config struct {
	Product ProductConfig `mapstructure:"product"`
	Update  UpdateConfig  `mapstructure:"update"`
	Build   BuildConfig   `mapstructure:"build"`
	Log     LogConfig     `mapstructure:"log"`
}

// ProductConfig identifies the application being updated.
type ProductConfig struct {
	Name        string `mapstructure:"name"`
	AppID       string `mapstructure:"app_id"`
	ProcessName string `mapstructure:"process_name"`
	IconPath    string `mapstructure:"icon_path"`
}

// UpdateConfig drives the client-side update loop.
type UpdateConfig struct {
	Provider        string `mapstructure:"provider"`
	URL             string `mapstructure:"url"`
	Owner           string `mapstructure:"owner"`
	Repo            string `mapstructure:"repo"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	IntervalMinutes int    `mapstructure:"interval_minutes"`
}

// BuildConfig drives the delta build pipeline.
type BuildConfig struct {
	CacheDir         string        `mapstructure:"cache_dir"`
	OutputDir        string        `mapstructure:"output_dir"`
	Platform         string        `mapstructure:"platform"`
	Target           string        `mapstructure:"target"`
	HistoryLimit     int           `mapstructure:"history_limit"`
	DiffTool         string        `mapstructure:"diff_tool"`
	ExtractTool      string        `mapstructure:"extract_tool"`
	InstallerTool    string        `mapstructure:"installer_tool"`
	SignTool         string        `mapstructure:"sign_tool"`
	ScriptPath       string        `mapstructure:"script_path"`
	ToolTimeoutSecs  int           `mapstructure:"tool_timeout_seconds"`
	Publish          PublishConfig `mapstructure:"publish"`
}

// PublishConfig selects where built patches and manifests are uploaded.
type PublishConfig struct {
	Provider        string `mapstructure:"provider"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	CredentialsFile string `mapstructure:"credentials_file"`
	AccountName     string `mapstructure:"account_name"`
	AccountKey      string `mapstructure:"account_key"`
	AccountID       string `mapstructure:"account_id"`
	ApplicationKey  string `mapstructure:"application_key"`
	LocalDir        string `mapstructure:"local_dir"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
}

func Default() *Config {
	return &Config{
		Product: ProductConfig{
			Name: "HelixDesk",
		},
		Update: UpdateConfig{
			Provider:        ProviderGeneric,
			IntervalMinutes: 15,
		},
		Build: BuildConfig{
			HistoryLimit:    10,
			DiffTool:        "hdiffz",
			ExtractTool:     "7za",
			InstallerTool:   "makensis",
			ToolTimeoutSecs: 600,
			Publish:         PublishConfig{Provider: PublishNone},
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load reads configuration from the given file, or from the default
// search path when cfgFile is empty. Missing config files are not an
// error; defaults apply.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("updater")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("HELIX")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Update.Provider {
	case "", ProviderHostedIndex, ProviderGeneric, ProviderBucket, ProviderCustom:
	default:
		return fmt.Errorf("unknown update provider %q", c.Update.Provider)
	}
	switch c.Build.Publish.Provider {
	case "", PublishNone, PublishLocal, PublishS3, PublishGCS, PublishAzure, PublishB2:
	default:
		return fmt.Errorf("unknown publish provider %q", c.Build.Publish.Provider)
	}
	if c.Update.IntervalMinutes < 0 {
		return fmt.Errorf("update interval must not be negative")
	}
	return nil
}

// ConfigDir returns the per-OS directory for the config file.
func ConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "HelixDesk")
	case "darwin":
		return "/Library/Application Support/HelixDesk"
	default:
		return "/etc/helixdesk"
	}
}

// DataDir returns the per-application local data directory where the
// update attempt record and the patch holder directory live.
func DataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "HelixDesk")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "HelixDesk")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "helixdesk")
	}
}

// CacheRoot returns the build pipeline cache root. The HELIX_DELTA_CACHE
// environment variable takes precedence over the configured and default
// locations.
func (c *BuildConfig) CacheRoot() string {
	if dir := os.Getenv(CacheEnvVar); dir != "" {
		return dir
	}
	if c.CacheDir != "" {
		return c.CacheDir
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		cache = os.TempDir()
	}
	return filepath.Join(cache, "helix-delta")
}

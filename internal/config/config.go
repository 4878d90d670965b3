package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	Device    DeviceConfig    `mapstructure:"device"`
	Video     VideoConfig     `mapstructure:"video"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	HUD       HUDConfig       `mapstructure:"hud"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Viewer    ViewerConfig    `mapstructure:"viewer"`
}

type DeviceConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	StreamPath    string `mapstructure:"stream_path"`
	TelemetryPath string `mapstructure:"telemetry_path"`
	ProbePath     string `mapstructure:"probe_path"`
}

type VideoConfig struct {
	Cameras           []string      `mapstructure:"cameras"`
	GatherTimeout     time.Duration `mapstructure:"gather_timeout"`
	TrackTimeout      time.Duration `mapstructure:"track_timeout"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	NoTrackRetryDelay time.Duration `mapstructure:"no_track_retry_delay"`
}

type TelemetryConfig struct {
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	ReadLimit      int64         `mapstructure:"read_limit"`
}

type ProbeConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type HUDConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type ViewerConfig struct {
	ReconnectLimit  int           `mapstructure:"reconnect_limit"`
	ReconnectWindow time.Duration `mapstructure:"reconnect_window"`
}

const envPrefix = "DASH"

// flag name -> config key
var flagKeys = map[string]string{
	"mode":      "mode",
	"port":      "port",
	"device":    "device.base_url",
	"log-level": "log.level",
	"log-file":  "log.file",
}

// Flags registers the command line overrides on fs.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default config/config.$CONFIG_ENV.yaml)")
	fs.String("mode", "", "gin mode: debug or release")
	fs.Int("port", 0, "local HTTP port")
	fs.String("device", "", "device base URL, e.g. http://192.168.43.1:7000")
	fs.String("log-level", "", "log level")
	fs.String("log-file", "", "also write logs to this rotating file")
}

// Loader reads the config once and can watch the file for changes.
type Loader struct {
	v    *viper.Viper
	file string
	read bool

	mu       sync.Mutex
	onChange []func(*Config)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "dash-local")

	v.SetDefault("device.base_url", "http://127.0.0.1:7000")
	v.SetDefault("device.stream_path", "/stream")
	v.SetDefault("device.telemetry_path", "/ws/carstate")
	v.SetDefault("device.probe_path", "/api/settings")

	v.SetDefault("video.cameras", []string{"road"})
	v.SetDefault("video.gather_timeout", "8s")
	v.SetDefault("video.track_timeout", "6s")
	v.SetDefault("video.retry_delay", "2s")
	v.SetDefault("video.no_track_retry_delay", "1s")

	v.SetDefault("telemetry.reconnect_delay", "1s")
	v.SetDefault("telemetry.read_limit", 1<<20)

	v.SetDefault("probe.interval", "300ms")
	v.SetDefault("probe.timeout", "8s")

	v.SetDefault("hud.sweep_interval", "800ms")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("viewer.reconnect_limit", 3)
	v.SetDefault("viewer.reconnect_window", "10s")
}

// NewLoader prepares viper: defaults, the env file, DASH_* variables and
// any flags set on fs. fs may be nil.
func NewLoader(fs *pflag.FlagSet) (*Loader, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			file = f.Value.String()
		}
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	if file == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		file = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(file)

	l := &Loader{v: v, file: file}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
		log.Warn().Str("module", "config").Str("file", file).Msg("config file not found, using defaults")
	} else {
		l.read = true
		log.Info().Str("module", "config").Str("file", file).Msg("loaded config")
	}
	return l, nil
}

func (l *Loader) Load() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Watch calls fn with the reloaded config whenever the file changes.
// A no-op when no file was read.
func (l *Loader) Watch(fn func(*Config)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, fn)
	first := len(l.onChange) == 1
	l.mu.Unlock()

	if !l.read || !first {
		return
	}
	l.v.OnConfigChange(l.changed)
	l.v.WatchConfig()
}

func (l *Loader) changed(e fsnotify.Event) {
	log.Info().Str("module", "config").Str("file", e.Name).Str("op", e.Op.String()).Msg("config changed")
	cfg, err := l.Load()
	if err != nil {
		log.Error().Err(err).Str("module", "config").Msg("reload failed, keeping previous config")
		return
	}
	l.mu.Lock()
	fns := append([]func(*Config){}, l.onChange...)
	l.mu.Unlock()
	for _, fn := range fns {
		fn(cfg)
	}
}

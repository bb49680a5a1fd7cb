package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	Server      ServerConfig    `yaml:"server"`
	Log         LogConfig       `yaml:"log"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Journal     JournalConfig   `yaml:"journal"`
	Engines     EnginesConfig   `yaml:"engines"`
	Audio       AudioConfig     `yaml:"audio"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

type TelemetryConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Exporter       string `yaml:"exporter"` // stdout, otlp or none
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type JournalConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"` // ephemeral, session or persistent
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type EnginesConfig struct {
	Dir           string `yaml:"dir"`
	Default       string `yaml:"default"`
	ExecTimeoutMS int    `yaml:"exec_timeout_ms"`
}

type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	BlockSize  int `yaml:"block_size"`
}

func Default() Config {
	return Config{
		ServiceName: "ucrad",
		Environment: "development",
		Server: ServerConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:        true,
			Exporter:       "stdout",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Journal: JournalConfig{
			Path:          "./data/ucra-journal.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Engines: EnginesConfig{
			Dir:           "./engines",
			Default:       "sine",
			ExecTimeoutMS: 30000,
		},
		Audio: AudioConfig{
			SampleRate: 44100,
			Channels:   1,
			BlockSize:  512,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "UCRA_SERVICE_NAME")
	overrideString(&cfg.Environment, "UCRA_ENVIRONMENT")
	overrideString(&cfg.Server.Bind, "UCRA_SERVER_BIND")
	overrideInt(&cfg.Server.Port, "UCRA_SERVER_PORT")
	overrideString(&cfg.Log.Level, "UCRA_LOG_LEVEL")
	overrideString(&cfg.Log.Format, "UCRA_LOG_FORMAT")
	overrideBool(&cfg.Telemetry.Enabled, "UCRA_TELEMETRY_ENABLED")
	overrideString(&cfg.Telemetry.Exporter, "UCRA_TELEMETRY_EXPORTER")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "UCRA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "UCRA_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "UCRA_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "UCRA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "UCRA_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "UCRA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "UCRA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "UCRA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "UCRA_BUS_TOKEN")
	overrideInt(&cfg.Bus.ConnectTimeout, "UCRA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Journal.Path, "UCRA_JOURNAL_PATH")
	overrideString(&cfg.Journal.RetentionMode, "UCRA_JOURNAL_RETENTION_MODE")
	overrideInt(&cfg.Journal.RetentionDays, "UCRA_JOURNAL_RETENTION_DAYS")
	overrideInt(&cfg.Journal.MaxSessions, "UCRA_JOURNAL_MAX_SESSIONS")
	overrideBool(&cfg.Journal.VacuumOnStart, "UCRA_JOURNAL_VACUUM_ON_START")
	overrideString(&cfg.Engines.Dir, "UCRA_ENGINES_DIR")
	overrideString(&cfg.Engines.Default, "UCRA_ENGINES_DEFAULT")
	overrideInt(&cfg.Engines.ExecTimeoutMS, "UCRA_ENGINES_EXEC_TIMEOUT_MS")
	overrideInt(&cfg.Audio.SampleRate, "UCRA_AUDIO_SAMPLE_RATE")
	overrideInt(&cfg.Audio.Channels, "UCRA_AUDIO_CHANNELS")
	overrideInt(&cfg.Audio.BlockSize, "UCRA_AUDIO_BLOCK_SIZE")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		var trimmed []string
		for _, p := range strings.Split(value, ",") {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return errors.New("log.format must be json or text")
	}
	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "stdout", "otlp", "none":
		default:
			return errors.New("telemetry.exporter must be one of stdout|otlp|none")
		}
		if cfg.Telemetry.Exporter == "otlp" && cfg.Telemetry.OTLPEndpoint == "" {
			return errors.New("telemetry.otlp_endpoint must be set when exporter=otlp")
		}
		if cfg.Telemetry.PrometheusBind == "" {
			return errors.New("telemetry.prometheus_bind must not be empty")
		}
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else if len(cfg.Bus.Servers) == 0 {
		return errors.New("bus.servers must not be empty when embedded mode is disabled")
	}
	if cfg.Journal.Path == "" && cfg.Journal.RetentionMode != "ephemeral" {
		return errors.New("journal.path must not be empty")
	}
	switch cfg.Journal.RetentionMode {
	case "ephemeral", "session", "persistent":
	default:
		return errors.New("journal.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Journal.RetentionDays < 0 {
		return errors.New("journal.retention_days must be >= 0")
	}
	if cfg.Engines.Dir == "" {
		return errors.New("engines.dir must not be empty")
	}
	if cfg.Engines.ExecTimeoutMS <= 0 {
		return errors.New("engines.exec_timeout_ms must be positive")
	}
	if cfg.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if cfg.Audio.Channels <= 0 {
		return errors.New("audio.channels must be positive")
	}
	if cfg.Audio.BlockSize <= 0 {
		return errors.New("audio.block_size must be positive")
	}
	return nil
}

package monitord_config

import (
	"time"

	pginfra "github.com/dmkor-dev/uptimed/internal/repository/postgres"

	"github.com/dmkor-dev/uptimed/internal/obs"
)

type KafkaCfg struct {
	Enable  bool     `mapstructure:"enable"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type MonitorCfg struct {
	Tick      time.Duration `mapstructure:"tick"`
	BatchSize int           `mapstructure:"batch_size"`
}

type ProbeCfg struct {
	UserAgent   string `mapstructure:"user_agent"`
	VerifyTLS   bool   `mapstructure:"verify_tls"`
	MaxSnapshot int    `mapstructure:"max_snapshot"`
}

type HubCfg struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type StatsCfg struct {
	Tick        time.Duration `mapstructure:"tick"`
	WindowHours int           `mapstructure:"window_hours"`
}

type AuthCfg struct {
	Secret     string        `mapstructure:"secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

type LogCfg struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	Env    string `mapstructure:"env"`
}

type OTELCfg struct {
	Enable      bool    `mapstructure:"enable"`
	Endpoint    string  `mapstructure:"otlp_endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type Config struct {
	DB          pginfra.Config `mapstructure:"db"`
	Kafka       KafkaCfg       `mapstructure:"kafka"`
	Monitor     MonitorCfg     `mapstructure:"monitor"`
	Probe       ProbeCfg       `mapstructure:"probe"`
	Hub         HubCfg         `mapstructure:"hub"`
	Stats       StatsCfg       `mapstructure:"stats"`
	Auth        AuthCfg        `mapstructure:"auth"`
	Log         LogCfg         `mapstructure:"log"`
	OTEL        OTELCfg        `mapstructure:"otel"`
	MetricsAddr string         `mapstructure:"metrics_addr"`
}

func (l LogCfg) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{Level: l.Level, Pretty: l.Pretty, App: "monitord", Env: l.Env}
}

func (o OTELCfg) AsOTELConfig() obs.OTELConfig {
	return obs.OTELConfig{
		Enable:      o.Enable,
		Endpoint:    o.Endpoint,
		ServiceName: o.ServiceName,
		SampleRatio: o.SampleRatio,
	}
}

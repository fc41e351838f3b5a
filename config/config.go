package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cwrk-planet/breakout-service/internal/domain"
	"github.com/cwrk-planet/breakout-service/internal/postgres"
	"github.com/cwrk-planet/breakout-service/internal/rooms"
	"github.com/cwrk-planet/breakout-service/internal/session"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type GRPC struct {
	Addr string `yaml:"addr"`
}

type HTTP struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  string `yaml:"readTimeout"`  // 10s
	WriteTimeout string `yaml:"writeTimeout"` // 15s
	IdleTimeout  string `yaml:"idleTimeout"`  // 60s
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // breakout-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

// Postgres с пустым DSN отключает хранение истории.
type Postgres struct {
	DSN               string `yaml:"dsn"`
	MaxConns          int32  `yaml:"maxConns"`
	MinConns          int32  `yaml:"minConns"`
	MaxConnLifetime   string `yaml:"maxConnLifetime"`
	MaxConnIdleTime   string `yaml:"maxConnIdleTime"`
	HealthCheckPeriod string `yaml:"healthCheckPeriod"`
	ApplicationName   string `yaml:"applicationName"`
}

// Auth без секрета доверяет заголовку X-User-ID.
type Auth struct {
	JWTSecret string `yaml:"jwtSecret"`
	Issuer    string `yaml:"issuer"`
}

type Session struct {
	TickInterval           string           `yaml:"tickInterval"` // 0: только ручные тики
	EndingGrace            string           `yaml:"endingGrace"`
	DefaultCapacity        int              `yaml:"defaultCapacity"`
	DefaultDurationSeconds int              `yaml:"defaultDurationSeconds"`
	ExtendStepSeconds      int              `yaml:"extendStepSeconds"`
	MaxPresenters          int              `yaml:"maxPresenters"`
	WarningSeconds         []int            `yaml:"warningSeconds"`
	AllowSelfMove          bool             `yaml:"allowSelfMove"`
	CommandBuffer          int              `yaml:"commandBuffer"`
	Features               *domain.Features `yaml:"features"`
}

// envOverrides перекрывают значения из yaml, если переменная задана.
type envOverrides struct {
	HTTPAddr    string `env:"BREAKOUT_HTTP_ADDR"`
	GRPCAddr    string `env:"BREAKOUT_GRPC_ADDR"`
	PostgresDSN string `env:"BREAKOUT_POSTGRES_DSN"`
	JWTSecret   string `env:"BREAKOUT_JWT_SECRET"`
	LogEnv      string `env:"BREAKOUT_LOG_ENV"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Auth     Auth     `yaml:"auth"`
	Session  Session  `yaml:"session"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return Load(path)
}

// Load reads path, applies BREAKOUT_* env overrides and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.HTTP.Addr, o.HTTPAddr)
	set(&c.GRPC.Addr, o.GRPCAddr)
	set(&c.Postgres.DSN, o.PostgresDSN)
	set(&c.Auth.JWTSecret, o.JWTSecret)
	set(&c.Logging.Env, o.LogEnv)
	return nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}
	if c.Session.DefaultCapacity < 0 || c.Session.DefaultDurationSeconds < 0 || c.Session.MaxPresenters < 0 {
		return errors.New("session limits must not be negative")
	}
	for _, s := range []string{c.Session.TickInterval, c.Session.EndingGrace} {
		if s == "" {
			continue
		}
		if d, err := time.ParseDuration(s); err != nil || d < 0 {
			return fmt.Errorf("session: bad duration %q", s)
		}
	}
	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "breakout-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Postgres.ApplicationName == "" {
		c.Postgres.ApplicationName = c.Logging.Service
	}
	if c.Session.TickInterval == "" {
		c.Session.TickInterval = "1s"
	}
	if c.Session.CommandBuffer == 0 {
		c.Session.CommandBuffer = 256
	}
	if c.Session.WarningSeconds == nil {
		c.Session.WarningSeconds = []int{300, 60}
	}
	c.Auth.JWTSecret = strings.TrimSpace(c.Auth.JWTSecret)
	return nil
}

// Timeouts returns read, write and idle timeouts of the HTTP server.
func (h HTTP) Timeouts() (time.Duration, time.Duration, time.Duration) {
	return parseDurationOr(10*time.Second, h.ReadTimeout),
		parseDurationOr(15*time.Second, h.WriteTimeout),
		parseDurationOr(60*time.Second, h.IdleTimeout)
}

func (p Postgres) PoolConfig() postgres.Config {
	return postgres.Config{
		DSN:               p.DSN,
		MaxConns:          p.MaxConns,
		MinConns:          p.MinConns,
		MaxConnLifetime:   parseDurationOr(0, p.MaxConnLifetime),
		MaxConnIdleTime:   parseDurationOr(0, p.MaxConnIdleTime),
		HealthCheckPeriod: parseDurationOr(0, p.HealthCheckPeriod),
		ApplicationName:   p.ApplicationName,
	}
}

func (s Session) SessionConfig() session.Config {
	rc := rooms.DefaultConfig()
	if s.DefaultCapacity > 0 {
		rc.DefaultCapacity = s.DefaultCapacity
	}
	if s.DefaultDurationSeconds > 0 {
		rc.DefaultDurationSeconds = s.DefaultDurationSeconds
	}
	if s.ExtendStepSeconds > 0 {
		rc.ExtendStepSeconds = s.ExtendStepSeconds
	}
	if s.WarningSeconds != nil {
		rc.WarningSeconds = s.WarningSeconds
	}
	if s.Features != nil {
		rc.DefaultFeatures = *s.Features
	}

	// "0" выключает реальные таймеры
	tick, _ := time.ParseDuration(s.TickInterval)
	grace, _ := time.ParseDuration(s.EndingGrace)
	return session.Config{
		TickInterval:  tick,
		EndingGrace:   grace,
		Rooms:         rc,
		MaxPresenters: s.MaxPresenters,
		AllowSelfMove: s.AllowSelfMove,
		CommandBuffer: s.CommandBuffer,
	}
}

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}

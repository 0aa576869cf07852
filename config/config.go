package config

import (
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type HealthCheckConfig struct {
	Interval string `mapstructure:"interval"`
}

// GlobalRateConfig throttles the gateway as a whole, before any per-route
// admission. RPS of 0 disables the gate.
type GlobalRateConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type ServiceConfig struct {
	Name                       string `mapstructure:"name"`
	BaseURL                    string `mapstructure:"base_url"`
	TimeoutSeconds             int    `mapstructure:"timeout_seconds"`
	MaxRetries                 int    `mapstructure:"max_retries"`
	CircuitFailureThreshold    int    `mapstructure:"circuit_failure_threshold"`
	CircuitResetTimeoutSeconds int    `mapstructure:"circuit_reset_timeout_seconds"`
}

type RouteConfig struct {
	Prefix        string `mapstructure:"prefix"`
	Service       string `mapstructure:"service"`
	Capacity      int    `mapstructure:"capacity"`
	WindowSeconds int    `mapstructure:"window_seconds"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	GlobalRate  GlobalRateConfig  `mapstructure:"global_rate"`
	Services    []ServiceConfig   `mapstructure:"services"`
	Routes      []RouteConfig     `mapstructure:"routes"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("logging.level", LogLevelInfo)
	viper.SetDefault("health_check.interval", "15s")
	viper.SetDefault("global_rate.rps", 0)
	viper.SetDefault("global_rate.burst", 0)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Error("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects any configuration the dispatch core cannot run with.
// A non-nil error here is fatal at startup; nothing is re-validated later.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.GlobalRate,
			validation.By(func(value interface{}) error {
				gr, ok := value.(GlobalRateConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a GlobalRateConfig")
				}
				if gr.RPS < 0 {
					return validation.NewError("validation_invalid_rps", "global rps cannot be negative")
				}
				if gr.RPS > 0 && gr.Burst < 1 {
					return validation.NewError("validation_invalid_burst", "burst must be at least 1 when global rps is set")
				}
				return nil
			}),
		),
		validation.Field(&c.Services,
			validation.Required,
			validation.Length(1, 0),
			validation.By(c.validateServices),
		),
		validation.Field(&c.Routes,
			validation.Required,
			validation.Length(1, 0),
			validation.By(c.validateRoutes),
		),
	)
}

func (c *Config) validateServices(value interface{}) error {
	services, ok := value.([]ServiceConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a []ServiceConfig")
	}

	seen := make(map[string]bool, len(services))
	for _, svc := range services {
		if svc.Name == "" {
			return validation.NewError("validation_empty_name", "service name cannot be empty")
		}
		if seen[svc.Name] {
			return validation.NewError("validation_duplicate_service", "duplicate service name: "+svc.Name)
		}
		seen[svc.Name] = true

		if err := validateServiceURL(svc.BaseURL); err != nil {
			return err
		}
		if svc.TimeoutSeconds < 1 {
			return validation.NewError("validation_invalid_timeout", "timeout_seconds must be at least 1")
		}
		if svc.MaxRetries < 1 {
			return validation.NewError("validation_invalid_retries", "max_retries must be at least 1")
		}
		if svc.CircuitFailureThreshold < 1 {
			return validation.NewError("validation_invalid_threshold", "circuit_failure_threshold must be at least 1")
		}
		if svc.CircuitResetTimeoutSeconds < 1 {
			return validation.NewError("validation_invalid_reset_timeout", "circuit_reset_timeout_seconds must be at least 1")
		}
	}

	return nil
}

func (c *Config) validateRoutes(value interface{}) error {
	routes, ok := value.([]RouteConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a []RouteConfig")
	}

	services := make(map[string]bool, len(c.Services))
	for _, svc := range c.Services {
		services[svc.Name] = true
	}

	seen := make(map[string]bool, len(routes))
	for _, route := range routes {
		if !strings.HasPrefix(route.Prefix, "/") {
			return validation.NewError("validation_invalid_prefix", "route prefix must start with /")
		}
		if seen[route.Prefix] {
			return validation.NewError("validation_duplicate_route", "duplicate route prefix: "+route.Prefix)
		}
		seen[route.Prefix] = true

		if !services[route.Service] {
			return validation.NewError("validation_unknown_service", "route references unknown service: "+route.Service)
		}
		if route.Capacity < 1 {
			return validation.NewError("validation_invalid_capacity", "capacity must be at least 1")
		}
		if route.WindowSeconds < 1 {
			return validation.NewError("validation_invalid_window", "window_seconds must be at least 1")
		}
	}

	return nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateServiceURL(serviceURL string) error {
	if serviceURL == "" {
		return validation.NewError("validation_empty_url", "service base_url cannot be empty")
	}

	parsedURL, err := url.Parse(serviceURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

// Package config provides shell configuration loaded from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds appshell configuration.
type Config struct {
	// Content surface
	ContentURL string `envconfig:"CONTENT_URL" default:"https://m.sulbing.com/app"`
	AppScheme  string `envconfig:"APP_SCHEME" default:"sulbingapp"`

	// Versions (semver). MinWebAppVersion empty = no floor.
	AppVersion       string `envconfig:"APP_VERSION" default:"1.0.0"`
	MinWebAppVersion string `envconfig:"MIN_WEB_APP_VERSION"`

	// Platform the shell fronts: IOS or ANDROID.
	Platform string `envconfig:"PLATFORM" default:"ANDROID"`

	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"appshell"`

	// Timeouts
	RequestTimeout      time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	FcmTimeout          time.Duration `envconfig:"FCM_TIMEOUT" default:"15s"`
	BackDecisionTimeout time.Duration `envconfig:"BACK_DECISION_TIMEOUT" default:"200ms"`
	DeviceTimeout       time.Duration `envconfig:"DEVICE_TIMEOUT" default:"5s"`

	// Offline monitor
	OfflinePollInterval time.Duration `envconfig:"OFFLINE_POLL_INTERVAL" default:"5s"`

	// Delivery journal (optional: empty DATABASE_URL disables it)
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// HTTP surface endpoint (SHELL_HTTP_ADDR preferred, e.g. "0.0.0.0:8080")
	HTTPAddr           string        `envconfig:"SHELL_HTTP_ADDR"`
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	c.Platform = strings.ToUpper(c.Platform)
	return &c, nil
}

// ValidateForServe checks required config when running the shell server.
func (c *Config) ValidateForServe() error {
	if c.ContentURL == "" {
		return fmt.Errorf("%s - CONTENT_URL is required for serve", logPrefix)
	}
	if c.Platform != "IOS" && c.Platform != "ANDROID" {
		return fmt.Errorf("%s - PLATFORM must be IOS or ANDROID, got %q", logPrefix, c.Platform)
	}
	if _, err := semver.NewVersion(c.AppVersion); err != nil {
		return fmt.Errorf("%s - APP_VERSION %q is not valid semver: %w", logPrefix, c.AppVersion, err)
	}
	if c.MinWebAppVersion != "" {
		if _, err := semver.NewVersion(c.MinWebAppVersion); err != nil {
			return fmt.Errorf("%s - MIN_WEB_APP_VERSION %q is not valid semver: %w", logPrefix, c.MinWebAppVersion, err)
		}
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.BackDecisionTimeout <= 0 {
		return fmt.Errorf("%s - BACK_DECISION_TIMEOUT must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

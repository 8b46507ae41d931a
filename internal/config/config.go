// Package config resolves the leadline home directory and loads service tunables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Service holds tunables loaded from <home>/config.yaml. Zero values mean
// "use the default"; Normalize fills them in.
type Service struct {
	SessionTTL       time.Duration
	SweepInterval    time.Duration
	QualifyThreshold int
}

// serviceYAML is the on-disk shape; durations are Go duration strings
// ("30m", "1h") since yaml.v3 has no native duration support.
type serviceYAML struct {
	SessionTTL       string `yaml:"session_ttl,omitempty"`
	SweepInterval    string `yaml:"sweep_interval,omitempty"`
	QualifyThreshold int    `yaml:"qualify_threshold,omitempty"`
}

// Defaults for the session lifecycle.
const (
	DefaultSessionTTL       = 30 * time.Minute
	DefaultSweepInterval    = 1 * time.Minute
	DefaultQualifyThreshold = 45
)

// ServicePath returns the path of the service config file under home.
func ServicePath(home string) string {
	return filepath.Join(home, "config.yaml")
}

// LoadService loads config from <home>/config.yaml. A missing file is not an
// error; defaults are returned.
func LoadService(home string) (Service, error) {
	var cfg Service
	data, err := os.ReadFile(ServicePath(home))
	if err != nil {
		if os.IsNotExist(err) {
			cfg.Normalize()
			return cfg, nil
		}
		return Service{}, err
	}
	var raw serviceYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Service{}, err
	}
	if raw.SessionTTL != "" {
		d, err := time.ParseDuration(raw.SessionTTL)
		if err != nil {
			return Service{}, err
		}
		cfg.SessionTTL = d
	}
	if raw.SweepInterval != "" {
		d, err := time.ParseDuration(raw.SweepInterval)
		if err != nil {
			return Service{}, err
		}
		cfg.SweepInterval = d
	}
	cfg.QualifyThreshold = raw.QualifyThreshold
	cfg.Normalize()
	return cfg, nil
}

// SaveService writes the config to <home>/config.yaml.
func SaveService(home string, cfg Service) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return err
	}
	raw := serviceYAML{QualifyThreshold: cfg.QualifyThreshold}
	if cfg.SessionTTL > 0 {
		raw.SessionTTL = cfg.SessionTTL.String()
	}
	if cfg.SweepInterval > 0 {
		raw.SweepInterval = cfg.SweepInterval.String()
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(ServicePath(home), data, 0o644)
}

// Normalize fills zero fields with defaults.
func (c *Service) Normalize() {
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.QualifyThreshold <= 0 {
		c.QualifyThreshold = DefaultQualifyThreshold
	}
}

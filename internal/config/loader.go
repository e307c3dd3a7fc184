// Package config loads service settings from MINDFOLK_ environment variables
// and an optional YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/mindfolk/internal/logging"
)

const envPrefix = "MINDFOLK_"

// FileEnv names the variable pointing at the optional YAML config file.
const FileEnv = envPrefix + "CONFIG_FILE"

// Config captures the settings of the reminder service.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	TokenTTL        time.Duration
	ViewTTL         time.Duration
	MaxViews        int // per account
	RefreshInterval time.Duration
	DisplayLocation *time.Location
	AllowedOrigins  []string
	LogLevel        string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		HTTPPort:        8080,
		SQLiteDSN:       "mindfolk.db",
		TokenTTL:        24 * time.Hour,
		ViewTTL:         30 * time.Minute,
		MaxViews:        16,
		RefreshInterval: time.Second,
		DisplayLocation: time.UTC,
		LogLevel:        "info",
	}
}

// fileValues mirrors the YAML file. Scalars are kept as strings so file and
// environment values share one parser.
type fileValues struct {
	HTTPPort        string   `yaml:"http_port"`
	SQLiteDSN       string   `yaml:"sqlite_dsn"`
	TokenTTL        string   `yaml:"token_ttl"`
	ViewTTL         string   `yaml:"view_ttl"`
	MaxViews        string   `yaml:"max_views"`
	RefreshInterval string   `yaml:"refresh_interval"`
	DisplayTZ       string   `yaml:"display_tz"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	LogLevel        string   `yaml:"log_level"`
}

func (f fileValues) raw() map[string]string {
	values := map[string]string{
		"HTTP_PORT":        f.HTTPPort,
		"SQLITE_DSN":       f.SQLiteDSN,
		"TOKEN_TTL":        f.TokenTTL,
		"VIEW_TTL":         f.ViewTTL,
		"MAX_VIEWS":        f.MaxViews,
		"REFRESH_INTERVAL": f.RefreshInterval,
		"DISPLAY_TZ":       f.DisplayTZ,
		"ALLOWED_ORIGINS":  strings.Join(f.AllowedOrigins, ","),
		"LOG_LEVEL":        f.LogLevel,
	}
	for key, value := range values {
		if strings.TrimSpace(value) == "" {
			delete(values, key)
		}
	}
	return values
}

// Load reads the YAML file named by MINDFOLK_CONFIG_FILE, if any, and then
// applies MINDFOLK_ environment variables on top. All invalid keys are
// reported in one error.
func Load() (Config, error) {
	raw := make(map[string]string)

	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config file: %w", err)
		}
		values, err := decodeFile(file)
		_ = file.Close()
		if err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		for key, value := range values.raw() {
			raw[key] = value
		}
	}

	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(envPrefix + key)); value != "" {
			raw[key] = value
		}
	}

	return parse(raw)
}

var keys = []string{
	"HTTP_PORT",
	"SQLITE_DSN",
	"TOKEN_TTL",
	"VIEW_TTL",
	"MAX_VIEWS",
	"REFRESH_INTERVAL",
	"DISPLAY_TZ",
	"ALLOWED_ORIGINS",
	"LOG_LEVEL",
}

func decodeFile(r io.Reader) (fileValues, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return fileValues{}, err
	}
	var values fileValues
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return fileValues{}, err
	}
	return values, nil
}

func parse(raw map[string]string) (Config, error) {
	cfg := Default()
	invalid := make([]string, 0, 2)

	if value, ok := raw["HTTP_PORT"]; ok {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, envPrefix+"HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if value, ok := raw["SQLITE_DSN"]; ok {
		cfg.SQLiteDSN = value
	}

	durations := []struct {
		key    string
		target *time.Duration
		zeroOK bool
	}{
		{"TOKEN_TTL", &cfg.TokenTTL, false},
		{"VIEW_TTL", &cfg.ViewTTL, false},
		{"REFRESH_INTERVAL", &cfg.RefreshInterval, true},
	}
	for _, d := range durations {
		value, ok := raw[d.key]
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed < 0 || (parsed == 0 && !d.zeroOK) {
			invalid = append(invalid, envPrefix+d.key)
			continue
		}
		*d.target = parsed
	}

	if value, ok := raw["MAX_VIEWS"]; ok {
		views, err := strconv.Atoi(value)
		if err != nil || views <= 0 {
			invalid = append(invalid, envPrefix+"MAX_VIEWS")
		} else {
			cfg.MaxViews = views
		}
	}

	if value, ok := raw["DISPLAY_TZ"]; ok {
		loc, err := time.LoadLocation(value)
		if err != nil {
			invalid = append(invalid, envPrefix+"DISPLAY_TZ")
		} else {
			cfg.DisplayLocation = loc
		}
	}

	if value, ok := raw["ALLOWED_ORIGINS"]; ok {
		for _, origin := range strings.Split(value, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	if value, ok := raw["LOG_LEVEL"]; ok {
		if _, err := logging.ParseLevel(value); err != nil {
			invalid = append(invalid, envPrefix+"LOG_LEVEL")
		} else {
			cfg.LogLevel = strings.ToLower(value)
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

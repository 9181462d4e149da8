package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the YAML config file.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                string `yaml:"port"`
	DatabaseURL         string `yaml:"databaseURL"`
	LogLevel            string `yaml:"logLevel"`
	JWTSecret           string `yaml:"jwtSecret"`
	SessionTTL          string `yaml:"sessionTTL"`
	SingleUseCodes      bool   `yaml:"singleUseCodes"`
	CodeTTL             string `yaml:"codeTTL"`
	ProtectCourseWrites bool   `yaml:"protectCourseWrites"`
	SMSAccessKeyID      string `yaml:"smsAccessKeyId"`
	SMSAccessKeySecret  string `yaml:"smsAccessKeySecret"`
	SMSEndpoint         string `yaml:"smsEndpoint"`
	SMSSignName         string `yaml:"smsSignName"`
	SMSTemplateCode     string `yaml:"smsTemplateCode"`
	SMSTimeoutMillis    int    `yaml:"smsTimeoutMillis"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		cfg.SessionTTL = v
	}
	if v := os.Getenv("SMS_ACCESS_KEY_ID"); v != "" {
		cfg.SMSAccessKeyID = v
	}
	if v := os.Getenv("SMS_ACCESS_KEY_SECRET"); v != "" {
		cfg.SMSAccessKeySecret = v
	}
	if v := os.Getenv("SMS_ENDPOINT"); v != "" {
		cfg.SMSEndpoint = v
	}
	if v := os.Getenv("SMS_SIGN_NAME"); v != "" {
		cfg.SMSSignName = v
	}
	if v := os.Getenv("SMS_TEMPLATE_CODE"); v != "" {
		cfg.SMSTemplateCode = v
	}
	if v := os.Getenv("SMS_TIMEOUT_MILLIS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SMSTimeoutMillis = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml)")
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: jwtSecret is required (set JWT_SECRET)")
	}
	// SMS credentials are optional as a set; a partial set is a misconfiguration.
	if (cfg.SMSAccessKeyID == "") != (cfg.SMSAccessKeySecret == "") {
		return errors.New("config: smsAccessKeyId and smsAccessKeySecret must be set together")
	}
	if cfg.SMSAccessKeyID != "" && (cfg.SMSSignName == "" || cfg.SMSTemplateCode == "") {
		return errors.New("config: smsSignName and smsTemplateCode are required when SMS credentials are set")
	}
	if cfg.SMSTimeoutMillis < 0 {
		return errors.New("config: smsTimeoutMillis must be >= 0")
	}
	return nil
}

// SMSConfigured reports whether an SMS gateway credential set is present.
func (cfg FileConfig) SMSConfigured() bool {
	return cfg.SMSAccessKeyID != ""
}

// ParseSessionTTL parses the optional session TTL duration string.
func ParseSessionTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid sessionTTL duration: %w", err)
	}
	return dur, nil
}

// ParseCodeTTL parses the optional verification-code TTL duration string.
func ParseCodeTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid codeTTL duration: %w", err)
	}
	return dur, nil
}

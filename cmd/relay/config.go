package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all relay server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	ListenAddr string `json:"listen_addr"`
	DBPath     string `json:"db_path"`
	LogLevel   string `json:"log_level"`
	PoolSize   int    `json:"pool_size"`

	StepTimeout       duration `json:"step_timeout"`
	SweepInterval     duration `json:"sweep_interval"`
	RunningTimeout    duration `json:"running_timeout"`
	StartupGrace      duration `json:"startup_grace"`
	RetryBase         duration `json:"retry_base"`
	MaxRetries        int      `json:"max_retries"`
	SchedulerInterval duration `json:"scheduler_interval"`

	ApprovalThreshold float64 `json:"approval_threshold"`
	DefaultApprover   string  `json:"default_approver"`
}

// duration is a time.Duration that unmarshals from "30m" style strings.
type duration time.Duration

func (d *duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

func (d duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func defaultConfig() Config {
	return Config{
		ListenAddr:        ":4200",
		DBPath:            filepath.Join(relayDir(), "relay.db"),
		LogLevel:          "info",
		PoolSize:          10,
		SchedulerInterval: duration(30 * time.Second),
	}
}

func relayDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relay"
	}
	return filepath.Join(home, ".relay")
}

func settingsPath() string {
	return filepath.Join(relayDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("RELAY_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("RELAY_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("RELAY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("RELAY_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = n
		}
	}
	if v := os.Getenv("RELAY_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv("RELAY_APPROVAL_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ApprovalThreshold = f
		}
	}
	if v := os.Getenv("RELAY_DEFAULT_APPROVER"); v != "" {
		cfg.DefaultApprover = v
	}
	for _, field := range []struct {
		env string
		dst *duration
	}{
		{"RELAY_STEP_TIMEOUT", &cfg.StepTimeout},
		{"RELAY_SWEEP_INTERVAL", &cfg.SweepInterval},
		{"RELAY_RUNNING_TIMEOUT", &cfg.RunningTimeout},
		{"RELAY_STARTUP_GRACE", &cfg.StartupGrace},
		{"RELAY_RETRY_BASE", &cfg.RetryBase},
		{"RELAY_SCHEDULER_INTERVAL", &cfg.SchedulerInterval},
	} {
		if v := os.Getenv(field.env); v != "" {
			if parsed, err := time.ParseDuration(v); err == nil {
				*field.dst = duration(parsed)
			}
		}
	}

	return cfg
}

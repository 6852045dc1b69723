package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultUser is used when a run configuration names no user.
const DefaultUser = "user"

// RunConfig identifies a strategy run and carries its parameters. It is
// loaded once before the run and treated as read-only afterwards.
type RunConfig struct {
	AlgoName  string `yaml:"algo_name"`
	User      string `yaml:"user"`
	Account   string `yaml:"account"`
	Region    string `yaml:"region"`
	SubmitURL string `yaml:"submitUrl"`
	Chart     string `yaml:"chart"`
	Strategy  string `yaml:"strategy"`

	// Params holds every other key, i.e. strategy-specific parameters.
	Params map[string]any `yaml:",inline"`
}

// ApplyDefaults fills in the default user and strategy.
func (r *RunConfig) ApplyDefaults() {
	if r.User == "" {
		r.User = DefaultUser
	}
	if r.Strategy == "" {
		r.Strategy = "noop"
	}
}

// Validate checks the fields every run needs.
func (r *RunConfig) Validate() error {
	if strings.TrimSpace(r.AlgoName) == "" {
		return errors.New("run.algo_name is required")
	}
	return nil
}

// Name returns the submission identity user@account.
func (r *RunConfig) Name() string {
	return r.User + "@" + r.Account
}

// ChartEnabled reports whether chart is set to "true".
func (r *RunConfig) ChartEnabled() bool {
	return parseBool(r.Chart)
}

// Param returns the raw value of a strategy parameter.
func (r *RunConfig) Param(key string) (any, bool) {
	v, ok := r.Params[key]
	return v, ok
}

// ParamString returns a strategy parameter formatted as a string, or def.
func (r *RunConfig) ParamString(key, def string) string {
	v, ok := r.Params[key]
	if !ok || v == nil {
		return def
	}
	return fmt.Sprint(v)
}

// ParamInt returns a strategy parameter as an int, or def when it is absent
// or not numeric. Hyperparameter files usually carry numbers as strings.
func (r *RunConfig) ParamInt(key string, def int) int {
	switch v := r.Params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// ParamFloat returns a strategy parameter as a float64, or def.
func (r *RunConfig) ParamFloat(key string, def float64) float64 {
	switch v := r.Params[key].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

// LoadRunConfig reads a flat hyperparameters file (JSON or YAML) into a
// RunConfig, applying env overrides and defaults.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	rc := &RunConfig{}
	if err := yaml.Unmarshal(data, rc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	rc.applyEnvOverrides()
	rc.ApplyDefaults()

	if err := rc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config %s: %w", path, err)
	}
	return rc, nil
}

func (r *RunConfig) applyEnvOverrides() {
	if v := os.Getenv("ALGO_USER"); v != "" {
		r.User = v
	}
	if v := os.Getenv("ALGO_ACCOUNT"); v != "" {
		r.Account = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		r.Region = v
	}
	if v := os.Getenv("SUBMIT_URL"); v != "" {
		r.SubmitURL = v
	}
}

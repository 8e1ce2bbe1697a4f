package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	tberrors "github.com/jj-shen99/testbench/internal/errors"
	"github.com/jj-shen99/testbench/internal/model"
	"github.com/jj-shen99/testbench/internal/schema"
	"github.com/jj-shen99/testbench/internal/testparser"
	"github.com/jj-shen99/testbench/internal/unit"
)

// Load reads and parses a workflow file. Defaults are not applied and the
// document is not validated.
func Load(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, tberrors.WrapKind(tberrors.KindConfig, err, fmt.Sprintf("read %s", path))
	}
	return Parse(data)
}

// Parse decodes a workflow document and reports unknown fields as warnings.
func Parse(data []byte) (*Config, []string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, tberrors.Config("workflow file is empty")
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, tberrors.WrapKind(tberrors.KindConfig, err, "parse workflow")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, tberrors.WrapKind(tberrors.KindConfig, err, "decode workflow")
	}

	return &cfg, detectUnknownFields(raw), nil
}

// LoadAndValidate loads a workflow file, validates it against the embedded
// JSON Schema, applies defaults and checks semantic constraints.
func LoadAndValidate(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, tberrors.WrapKind(tberrors.KindConfig, err, fmt.Sprintf("read %s", path))
	}
	return ParseAndValidate(data)
}

// ParseAndValidate is LoadAndValidate for an in-memory document.
func ParseAndValidate(data []byte) (*Config, []string, error) {
	cfg, warnings, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, tberrors.WrapKind(tberrors.KindConfig, err, "parse workflow")
	}
	if err := schema.ValidateDocument(doc); err != nil {
		return nil, warnings, tberrors.WrapKind(tberrors.KindConfig, err, "schema")
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, warnings, tberrors.WrapKind(tberrors.KindConfig, err, "invalid workflow")
	}
	return cfg, warnings, nil
}

// CategoryPolicies converts the category sections into the immutable
// policies used by the orchestrator. Defaults must have been applied.
func (c *Config) CategoryPolicies() map[string]model.CategoryConfig {
	out := make(map[string]model.CategoryConfig, len(c.Categories))
	for name, cat := range c.Categories {
		out[name] = model.CategoryConfig{
			Name:       name,
			Parallel:   cat.Parallel,
			MaxWorkers: cat.MaxWorkers,
			Timeout:    seconds(cat.Timeout),
			DependsOn:  cat.DependsOn,
		}
	}
	return out
}

// FilePolicies returns the discovery policy of each category. Parser names
// must have been validated.
func (c *Config) FilePolicies() map[string]unit.FilePolicy {
	parsers := testparser.NewRegistry()
	out := make(map[string]unit.FilePolicy, len(c.Categories))
	for name, cat := range c.Categories {
		policy := unit.FilePolicy{Pattern: cat.Pattern, Command: cat.Command}
		if cat.Parser != "" {
			policy.Parser, _ = parsers.Lookup(cat.Parser)
		}
		out[name] = policy
	}
	return out
}

// SubmitIntervalDuration returns the load submission interval.
func (l *LoadConfig) SubmitIntervalDuration() time.Duration {
	return seconds(l.SubmitInterval)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// CategoryNames returns the configured category names in sorted order.
func (c *Config) CategoryNames() []string {
	names := make([]string, 0, len(c.Categories))
	for name := range c.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

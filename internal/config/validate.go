package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/jj-shen99/testbench/internal/testparser"
	"github.com/jj-shen99/testbench/internal/topsort"
)

// ValidationError describes a semantic configuration error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var categoryNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Validate checks constraints that the schema cannot express. Defaults
// must have been applied.
func Validate(cfg *Config) error {
	if len(cfg.Categories) == 0 {
		return &ValidationError{Field: "categories", Message: "at least one category is required"}
	}
	if err := validateCategories(cfg); err != nil {
		return err
	}
	if cfg.Execution.MaxWorkers < 1 {
		return &ValidationError{Field: "execution.max_workers", Message: "must be at least 1"}
	}
	return validateLoad(cfg.Load)
}

func validateCategories(cfg *Config) error {
	parsers := testparser.NewRegistry()
	names := make([]string, 0, len(cfg.Categories))
	for name := range cfg.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cat := cfg.Categories[name]
		field := "categories." + name
		if !categoryNamePattern.MatchString(name) {
			return &ValidationError{Field: field, Message: "name must match ^[a-z][a-z0-9_-]*$"}
		}
		if cat.Timeout <= 0 {
			return &ValidationError{Field: field + ".timeout", Message: "must be positive"}
		}
		if cat.MaxWorkers < 1 {
			return &ValidationError{Field: field + ".max_workers", Message: "must be at least 1"}
		}
		if cat.Parser != "" {
			if _, ok := parsers.Lookup(cat.Parser); !ok {
				return &ValidationError{Field: field + ".parser", Message: fmt.Sprintf("unknown parser %q (available: %v)", cat.Parser, parsers.Names())}
			}
		}
		if cat.Pattern != "" {
			if _, err := filepath.Match(cat.Pattern, ""); err != nil {
				return &ValidationError{Field: field + ".pattern", Message: fmt.Sprintf("invalid glob %q", cat.Pattern)}
			}
		}
	}
	return validateDependencies(cfg)
}

func validateDependencies(cfg *Config) error {
	g := make(topsort.Graph, len(cfg.Categories))
	for name, cat := range cfg.Categories {
		g[name] = cat.DependsOn
	}
	_, err := topsort.Sort(g)
	var missing *topsort.MissingError
	var cycle *topsort.CycleError
	switch {
	case errors.As(err, &missing):
		return &ValidationError{Field: "categories." + missing.Node + ".depends_on", Message: fmt.Sprintf("unknown category %q", missing.Dep)}
	case errors.As(err, &cycle):
		return &ValidationError{Field: "categories." + cycle.Path[0] + ".depends_on", Message: cycle.Error()}
	}
	return nil
}

func validateLoad(l *LoadConfig) error {
	if l.SubmitInterval <= 0 {
		return &ValidationError{Field: "load.submit_interval", Message: "must be positive"}
	}
	if l.MinSuccessRate < 0 || l.MinSuccessRate > 100 {
		return &ValidationError{Field: "load.min_success_rate", Message: "must be between 0 and 100"}
	}

	s := l.Stress
	switch {
	case s.StartUsers < 1:
		return &ValidationError{Field: "load.stress.start_users", Message: "must be at least 1"}
	case s.MaxUsers < s.StartUsers:
		return &ValidationError{Field: "load.stress.max_users", Message: fmt.Sprintf("must be >= start_users (%d)", s.StartUsers)}
	case s.Step < 1:
		return &ValidationError{Field: "load.stress.step", Message: "must be at least 1"}
	case s.Window <= 0:
		return &ValidationError{Field: "load.stress.window", Message: "must be positive"}
	}

	e := l.Endurance
	switch {
	case e.Users < 1:
		return &ValidationError{Field: "load.endurance.users", Message: "must be at least 1"}
	case e.Duration <= 0:
		return &ValidationError{Field: "load.endurance.duration", Message: "must be positive"}
	case e.Interval <= 0:
		return &ValidationError{Field: "load.endurance.interval", Message: "must be positive"}
	}
	return nil
}

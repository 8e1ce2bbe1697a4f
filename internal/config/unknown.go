package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// detectUnknownFields returns warnings for keys that do not map to a
// Config field.
func detectUnknownFields(raw map[string]interface{}) []string {
	var warnings []string

	known := yamlFields(reflect.TypeOf(Config{}))
	for _, key := range sortedKeys(raw) {
		if !known[key] {
			warnings = append(warnings, fmt.Sprintf("unknown field %q at root level (ignored)", key))
		}
	}

	if cats, ok := raw["categories"].(map[string]interface{}); ok {
		catFields := yamlFields(reflect.TypeOf(CategoryConfig{}))
		for _, name := range sortedKeys(cats) {
			if section, ok := cats[name].(map[string]interface{}); ok {
				warnings = append(warnings, checkSection(section, catFields, "categories."+name)...)
			}
		}
	}

	sections := []struct {
		key string
		typ reflect.Type
	}{
		{"execution", reflect.TypeOf(ExecutionConfig{})},
		{"environment", reflect.TypeOf(EnvironmentConfig{})},
		{"load", reflect.TypeOf(LoadConfig{})},
	}
	for _, s := range sections {
		if section, ok := raw[s.key].(map[string]interface{}); ok {
			warnings = append(warnings, checkSection(section, yamlFields(s.typ), s.key)...)
		}
	}

	if load, ok := raw["load"].(map[string]interface{}); ok {
		if stress, ok := load["stress"].(map[string]interface{}); ok {
			warnings = append(warnings, checkSection(stress, yamlFields(reflect.TypeOf(StressConfig{})), "load.stress")...)
		}
		if endurance, ok := load["endurance"].(map[string]interface{}); ok {
			warnings = append(warnings, checkSection(endurance, yamlFields(reflect.TypeOf(EnduranceConfig{})), "load.endurance")...)
		}
	}

	return warnings
}

func checkSection(section map[string]interface{}, known map[string]bool, path string) []string {
	var warnings []string
	for _, key := range sortedKeys(section) {
		if !known[key] {
			warnings = append(warnings, fmt.Sprintf("unknown field %q in %s (ignored)", key, path))
		}
	}
	return warnings
}

// yamlFields returns the set of yaml keys declared by a struct type.
func yamlFields(t reflect.Type) map[string]bool {
	fields := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		fields[name] = true
	}
	return fields
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

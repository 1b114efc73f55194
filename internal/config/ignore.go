package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// IgnoreConfig hides releases from listings and --latest resolution.
// Structure examples:
//
//		{
//		  "all": ["2022.3"],
//		  "Canary": ["2025.2"],
//		  "Beta": {"all": ["2025.1.1"], "mac": ["2024.3.2"]}
//		}
//
//	  - Keys are a channel name as published in the feed, or "all" for every
//	    channel. Channel keys are matched case-insensitively.
//	  - A channel value is an array (applies to all platforms) or an object
//	    with key "all" and OS keys ("mac", "linux", "windows").
//	  - A pattern matches a version by prefix or a build exactly.
type IgnoreConfig map[string]any

// LoadIgnoreConfig loads an ignore configuration file if provided.
// Returns an empty config if filePath is empty.
func LoadIgnoreConfig(filePath string) (IgnoreConfig, error) {
	if filePath == "" {
		return IgnoreConfig{}, nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ignore file %s: %w", filePath, err)
	}
	var raw map[string]any
	switch ext := filepath.Ext(filePath); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML ignore file %s: %w", filePath, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON ignore file %s: %w", filePath, err)
		}
	}
	return IgnoreConfig(raw), nil
}

// IsIgnored reports whether the release identified by channel, version and
// build is hidden on osName.
func (ic IgnoreConfig) IsIgnored(channel, version, build, osName string) bool {
	for key, rules := range ic {
		if key != "all" && !strings.EqualFold(key, channel) {
			continue
		}
		if matchRules(rules, version, build, osName) {
			return true
		}
	}
	return false
}

func matchRules(rules any, version, build, osName string) bool {
	switch r := rules.(type) {
	case []any:
		return matchPatterns(r, version, build)
	case map[string]any:
		for _, key := range []string{"all", osName} {
			if arr, ok := r[key].([]any); ok && matchPatterns(arr, version, build) {
				return true
			}
		}
	}
	return false
}

func matchPatterns(patterns []any, version, build string) bool {
	for _, p := range patterns {
		s, ok := p.(string)
		if !ok || s == "" {
			continue
		}
		if s == version || s == build {
			return true
		}
		// Prefix matches stop at segment boundaries so "2024.1" does not hide
		// "2024.10".
		if strings.HasPrefix(version, s+".") {
			return true
		}
	}
	return false
}

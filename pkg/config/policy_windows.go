//go:build windows

package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"golang.org/x/sys/windows/registry"
)

// LoadConfigFromPolicy overlays values from HKLM\SOFTWARE\Policies\c2rscrub onto the defaults.
func LoadConfigFromPolicy() (*Configuration, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, PolicyRegistryPath, registry.READ)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy key %s: %w", PolicyRegistryPath, err)
	}
	defer key.Close()

	cfg := GetDefaultConfig()

	loadStringFromRegistry(key, "LogLevel", &cfg.LogLevel)
	loadStringFromRegistry(key, "LogPath", &cfg.LogPath)
	loadStringFromRegistry(key, "DeferredDelete", &cfg.DeferredDelete)

	loadIntFromRegistry(key, "ProcessTimeoutSeconds", &cfg.ProcessTimeoutSecs)
	loadIntFromRegistry(key, "RetryAttempts", &cfg.RetryAttempts)
	loadIntFromRegistry(key, "RetryIntervalMillis", &cfg.RetryIntervalMillis)

	loadBoolFromRegistry(key, "DryRun", &cfg.DryRun)
	loadBoolFromRegistry(key, "Force64Bit", &cfg.Force64Bit)
	loadBoolFromRegistry(key, "RestartExplorer", &cfg.RestartExplorer)

	loadStringArrayFromRegistry(key, "Processes", &cfg.Processes)
	loadStringArrayFromRegistry(key, "Services", &cfg.Services)
	loadStringArrayFromRegistry(key, "CleanupPaths", &cfg.CleanupPaths)
	loadStringArrayFromRegistry(key, "Shortcuts", &cfg.Shortcuts)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadStringFromRegistry(key registry.Key, valueName string, target *string) {
	if val, _, err := key.GetStringValue(valueName); err == nil && val != "" {
		*target = val
		log.Printf("Policy: Loaded %s = %s", valueName, val)
	}
}

// loadBoolFromRegistry accepts "true"/"false", "1"/"0" strings and DWORD 1/0.
func loadBoolFromRegistry(key registry.Key, valueName string, target *bool) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.ParseBool(val); parseErr == nil {
			*target = parsed
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = val != 0
	}
}

func loadIntFromRegistry(key registry.Key, valueName string, target *int) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.Atoi(val); parseErr == nil {
			*target = parsed
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = int(val)
	}
}

// loadStringArrayFromRegistry reads REG_MULTI_SZ, or a comma-separated REG_SZ.
func loadStringArrayFromRegistry(key registry.Key, valueName string, target *[]string) {
	var raw []string
	if vals, _, err := key.GetStringsValue(valueName); err == nil {
		raw = vals
	} else if val, _, err := key.GetStringValue(valueName); err == nil {
		raw = strings.Split(val, ",")
	}

	filtered := make([]string, 0, len(raw))
	for _, v := range raw {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			filtered = append(filtered, trimmed)
		}
	}
	if len(filtered) > 0 {
		*target = filtered
		log.Printf("Policy: Loaded %s = %v", valueName, filtered)
	}
}

//go:build !windows

package config

import "errors"

// LoadConfigFromPolicy is only meaningful on Windows.
func LoadConfigFromPolicy() (*Configuration, error) {
	return nil, errors.New("policy registry is not available on this platform")
}

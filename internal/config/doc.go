// Package config loads, validates, and normalizes the TOML configuration.
// One Config value is constructed at startup and passed by reference to
// every component; nothing reads ambient global state.
package config

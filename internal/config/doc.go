// Package config loads and validates the loopforge TOML configuration.
//
// A single Config value is constructed at process start and handed to every
// component; nothing in the tree reads ambient global state. Defaults are
// suitable for a single-user install under the home directory.
package config

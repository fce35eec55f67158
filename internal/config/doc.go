// Package config loads, normalizes, and validates cbzxl configuration.
//
// Settings come from a TOML file (~/.config/cbzxl/config.toml by default, or
// a cbzxl.toml beside the working directory), with CLI flags layered on top
// by the command layer. Paths are tilde-expanded and made absolute during
// normalization so the rest of the program never sees relative config paths.
package config

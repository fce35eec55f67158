// Package logging builds the slog loggers used across cbzxl.
//
// Two output formats are supported: a compact console format for
// interactive runs and JSON for machine consumption. Components attach a
// standardized component attribute via NewComponentLogger so console output
// stays scannable during long batch runs.
package logging

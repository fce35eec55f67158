// Package main hosts the cbzxl CLI entrypoint and command graph.
//
// The Cobra-based command tree converts comic archives under a library root
// to JPEG XL, and surfaces the supporting operations around that: ledger
// statistics and maintenance, environment checks, and configuration
// scaffolding. It centralizes configuration resolution and structured
// logging setup so subcommands can focus on user experience instead of
// wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main

// Package main hosts the coho CLI entrypoint and command graph.
//
// The Cobra-based command tree surfaces the release pipeline (coho up),
// the standalone analysis checks, queue and catalog inspection, and
// configuration scaffolding. It centralizes configuration resolution and
// structured logging setup so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags
// here.
package main

// Package logger provides structured logging built on zerolog.
//
// It exposes a thin Logger wrapper with component/session/stage tagging,
// a package-level global logger for convenience, and standard field key
// constants so log output stays greppable across the pipeline.
package logger

// Package logging builds the daemon's slog loggers and centralizes
// structured field names so log keys stay consistent across stages.
package logging

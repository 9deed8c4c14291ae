// Package logging configures structured slog output for docindex runs.
// Records are JSON, optionally mirrored into a size-rotated file under
// ~/.docindex/logs/ so an operator can see where an unattended run stopped.
package logging

//go:build !go1.22

package main

import "log/slog"

// slog.SetLogLoggerLevel does not exist before Go 1.22; the bridge from the
// legacy log package keeps its default level on older toolchains.
func setLogLoggerLevel(_ slog.Level) {}

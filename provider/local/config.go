package local

import (
	"log/slog"
)

type Config struct {
	// Logger to use
	Logger *slog.Logger
	// vCPUs reported by the synthetic quota service for each pricing model;
	// defaults to the host's CPU count
	QuotaVCPUs int32
}

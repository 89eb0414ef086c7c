package aws

import (
	"log/slog"
)

type Config struct {
	// Logger to use
	Logger *slog.Logger
	// Region overrides the region resolved from the environment
	Region string
}

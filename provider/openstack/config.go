package openstack

import (
	"log/slog"
)

type Config struct {
	// Logger to use
	Logger *slog.Logger
	// Region to authenticate against, OS_REGION_NAME when empty
	Region string
}

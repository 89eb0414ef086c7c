package azure

import (
	"log/slog"
)

type Config struct {
	// Logger to use
	Logger *slog.Logger
	// SubscriptionID of the subscription holding the fleet
	SubscriptionID string
	// ResourceGroup the scale sets and VMs live in
	ResourceGroup string
	// Location whose compute usage is consulted for quota
	Location string
}

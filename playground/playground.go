package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/provider/local"
	"github.com/nimbuslab/flotilla/provider/openstack"
)

func main() {
	var providerID = os.Getenv("PROVIDER")
	var provider fleet.Provider
	var err error

	switch providerID {
	case "local":
		provider, err = local.NewProvider(local.Config{})
	case "openstack":
		provider, err = openstack.NewProvider(openstack.Config{
			Region: "dc3-a", // infomaniak public cloud
		})
	default:
		provider, err = nil, fmt.Errorf("unknown provider '%s'", providerID)
	}
	if err != nil {
		fmt.Printf(fmt.Errorf("unable to create provider '%s': %w\n", providerID, err).Error())
		os.Exit(1)
	}

	scheduler := fleet.NewScheduler(provider, fleet.Config{
		Groups: map[string]fleet.GroupSpec{
			"gpu-workers": {
				Target: 2,
				Selector: fleet.TagSelector{
					Project:     "playground",
					Environment: "dev",
					Role:        fleet.RoleCompute,
				},
			},
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	go func() {
		<-sig
		cancel()
		<-sig
		os.Exit(1)
	}()

	dump(scheduler.Invoke(ctx, fleet.Trigger{Action: fleet.ActionStart, Group: "gpu-workers", Timestamp: time.Now().UTC()}))
	dump(scheduler.Invoke(ctx, fleet.Trigger{Action: fleet.ActionStop, Group: "gpu-workers", Timestamp: time.Now().UTC()}))
}

func dump(result *fleet.ReconciliationResult) {
	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}

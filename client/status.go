package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nimbuslab/flotilla/client/ui"
	"github.com/nimbuslab/flotilla/fleet"
)

// statusReply mirrors the status payload of the server.
type statusReply struct {
	Version     string        `json:"version"`
	Provider    string        `json:"provider"`
	Project     string        `json:"project"`
	Environment string        `json:"environment"`
	StartedAt   time.Time     `json:"startedAt"`
	Groups      []groupStatus `json:"groups"`
}

type groupStatus struct {
	Name           string                      `json:"name"`
	Target         int32                       `json:"target"`
	NextStart      *time.Time                  `json:"nextStart"`
	NextStop       *time.Time                  `json:"nextStop"`
	LastInvocation *fleet.ReconciliationResult `json:"lastInvocation"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the fleet plan and upcoming schedule firings",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		spinner := ui.NewSpinner("Fetching fleet status")
		status, err := doJSON[statusReply](api, cmd.Context(), http.MethodGet, "/v1/status", nil)
		if err != nil {
			spinner.Fail()
			return err
		}
		spinner.Success(fmt.Sprintf("Fleet %s/%s on provider %s", status.Project, status.Environment, status.Provider))

		cmd.Printf("%-12s %s\n", "Server:", status.Version)
		cmd.Printf("%-12s %s\n", "Started:", status.StartedAt.Local().Truncate(time.Second))
		cmd.Println()

		for _, group := range status.Groups {
			cmd.Printf("%s  target %d\n", color.HiCyanString(group.Name), group.Target)
			cmd.Printf("  %-12s %s\n", "Next start:", formatFiring(group.NextStart))
			cmd.Printf("  %-12s %s\n", "Next stop:", formatFiring(group.NextStop))
			cmd.Printf("  %-12s %s\n", "Last run:", formatInvocation(group.LastInvocation))
		}
		return nil
	},
}

func formatFiring(at *time.Time) string {
	if at == nil {
		return "unscheduled"
	}
	return at.Local().Truncate(time.Second).String()
}

func formatInvocation(result *fleet.ReconciliationResult) string {
	if result == nil {
		return "never"
	}
	outcome := "ok"
	if !result.Succeeded() {
		outcome = fmt.Sprintf("%d error(s)", len(result.Errors))
	}
	return fmt.Sprintf("%s %s (%s, %s)", result.Action, result.Name, result.Timestamp.Local().Truncate(time.Second), outcome)
}

package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/nimbuslab/flotilla/client/ui"
	"github.com/nimbuslab/flotilla/fleet"
)

type triggerPayload struct {
	Action string `json:"action"`
	Group  string `json:"group"`
}

var triggerCmd = &cobra.Command{
	Use:   "trigger (start|stop) GROUP",
	Short: "Run one reconciliation of a fleet group",
	Args:  cobra.ExactArgs(2),

	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := fleet.ParseAction(args[0])
		if err != nil {
			return err
		}
		group := args[1]

		spinner := ui.NewSpinner("Reconciling group '%s'", group)
		result, err := doJSON[fleet.ReconciliationResult](api, cmd.Context(), http.MethodPost, "/v1/triggers", triggerPayload{
			Action: string(action),
			Group:  group,
		})
		if err != nil {
			spinner.Fail()
			return err
		}

		if result.Succeeded() {
			spinner.Success(fmt.Sprintf("Invocation %s converged", color.HiCyanString(string(result.Name))))
		} else {
			spinner.Warn(fmt.Sprintf("Invocation %s finished with %d error(s)", color.HiCyanString(string(result.Name)), len(result.Errors)))
		}

		if result.GroupCapacityUpdated {
			cmd.Printf("%-12s %d -> %d\n", "Capacity:", result.PreviousDesired, result.NewDesired)
		} else {
			cmd.Printf("%-12s %d (unchanged)\n", "Capacity:", result.PreviousDesired)
		}
		cmd.Printf("%-12s %d\n", "Resources:", len(result.ResourcesActedOn))
		if verbose {
			for _, resource := range result.ResourcesActedOn {
				cmd.Printf("  %s\n", resource)
			}
		}
		for _, record := range result.Errors {
			cmd.PrintErrln(color.HiYellowString("[%s] %s", record.Stage, record.Message))
		}

		// A group the server never heard of is reported inside the result,
		// not as an HTTP error.
		if lo.SomeBy(result.Errors, func(record fleet.ErrorRecord) bool {
			return strings.Contains(record.Message, fleet.ErrGroupNotFound.Error())
		}) {
			return fmt.Errorf("group '%s' does not exist", group)
		}
		return nil
	},
}

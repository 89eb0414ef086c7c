package main

import (
	"fmt"
	"net/http"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nimbuslab/flotilla/fleet"
)

var resultsLimit int

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List recent invocation results, newest first",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		route := fmt.Sprintf("/v1/results?limit=%d", resultsLimit)
		listed, err := doJSON[[]fleet.ReconciliationResult](api, cmd.Context(), http.MethodGet, route, nil)
		if err != nil {
			return err
		}

		if len(listed) == 0 {
			cmd.PrintErrln("No invocations recorded yet")
			return nil
		}

		for _, result := range listed {
			capacity := fmt.Sprintf("%d", result.PreviousDesired)
			if result.GroupCapacityUpdated {
				capacity = fmt.Sprintf("%d -> %d", result.PreviousDesired, result.NewDesired)
			}
			outcome := color.HiGreenString("ok")
			if !result.Succeeded() {
				outcome = color.HiYellowString("%d error(s)", len(result.Errors))
			}

			cmd.Printf("%s  %-5s %-20s %-10s %s  %s\n",
				result.Timestamp.Local().Format("2006-01-02 15:04:05"),
				result.Action,
				color.HiCyanString(result.Group),
				capacity,
				color.HiCyanString(string(result.Name)),
				outcome,
			)

			if verbose {
				for _, record := range result.Errors {
					cmd.Printf("  [%s] %s\n", record.Stage, record.Message)
				}
			}
		}
		return nil
	},
}

func init() {
	resultsCmd.Flags().IntVar(&resultsLimit, "limit", 32, "maximum number of results to list")
}

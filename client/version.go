package main

import (
	"math"
	"net/http"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version number of Flotilla",

	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("flotilla version %s (%s)\n", version, commit[:int(math.Min(float64(len(commit)), 7))])

		if status, err := doJSON[statusReply](api, cmd.Context(), http.MethodGet, "/v1/status", nil); err != nil {
			return err
		} else {
			cmd.Printf("server version %s\n", status.Version)
			return nil
		}
	},
}

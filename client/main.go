package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/nimbuslab/flotilla/server/config"
)

// Versioning information set at build time
var version, commit, repository = "dev", "n/a", "nimbuslab/flotilla"

var verbose bool

var flotillaCmd = &cobra.Command{
	Use:   "flotilla",
	Short: "Flotilla schedules GPU fleet capacity within cloud quotas.",

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		api = newAPI(lo.Must(cmd.Flags().GetString("server")))
		startVersionCheck(cmd.Context())
		return nil
	},
}

func init() {
	flotillaCmd.AddCommand(completionCmd)
	flotillaCmd.AddCommand(resolveCmd)
	flotillaCmd.AddCommand(resultsCmd)
	flotillaCmd.AddCommand(selfUpdateCmd)
	flotillaCmd.AddCommand(statusCmd)
	flotillaCmd.AddCommand(triggerCmd)
	flotillaCmd.AddCommand(versionCmd)

	flotillaCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flotillaCmd.PersistentFlags().String("server", lo.Must(lo.Coalesce(os.Getenv("FLOTILLA_SERVER"), fmt.Sprintf("http://127.0.0.1:%d", config.DefaultPort))), "the server address")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flotillaCmd.SetOut(os.Stdout)
	err := flotillaCmd.ExecuteContext(ctx)
	printVersionNotice()
	if err != nil {
		lo.Must(fmt.Fprintln(os.Stderr, color.HiRedString(fmt.Sprint(err))))
		os.Exit(1)
	}
}

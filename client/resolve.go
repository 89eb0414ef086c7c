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

type resolvePayload struct {
	Class string `json:"class"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve CLASS",
	Short: "Check an instance class against the current quota",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		class := args[0]

		spinner := ui.NewSpinner("Resolving instance class '%s'", class)
		decision, err := doJSON[fleet.ResolutionDecision](api, cmd.Context(), http.MethodPost, "/v1/resolve", resolvePayload{Class: class})
		if err != nil {
			spinner.Fail()
			return err
		}

		switch {
		case decision.ChosenClass != nil:
			spinner.Success(fmt.Sprintf("Class %s fits as %s capacity", color.HiCyanString(decision.ChosenClass.Name), decision.ChosenPricingModel))
			if verbose {
				cmd.Printf("%-14s %d\n", "vCPUs:", decision.ChosenClass.VCPUs)
				cmd.Printf("%-14s %s\n", "Accelerators:", formatAccelerators(*decision.ChosenClass))
			}

		case len(decision.Alternatives) > 0:
			spinner.Warn(fmt.Sprintf("Class '%s' does not fit, %d substitute(s) available", class, len(decision.Alternatives)))
			for _, alternative := range decision.Alternatives {
				models := lo.Map(alternative.PricingModels, func(model fleet.PricingModel, _ int) string {
					return string(model)
				})
				cmd.Printf("%-16s %2d vCPUs  %-12s %s\n",
					color.HiCyanString(alternative.Class.Name),
					alternative.Class.VCPUs,
					formatAccelerators(alternative.Class),
					strings.Join(models, ", "),
				)
			}

		default:
			spinner.Fail(fmt.Sprintf("No capacity for class '%s' under any pricing model", class))
		}
		return nil
	},
}

func formatAccelerators(class fleet.InstanceClass) string {
	if class.AcceleratorCount == 0 {
		return "none"
	}
	return fmt.Sprintf("%dx %s", class.AcceleratorCount, class.AcceleratorType)
}

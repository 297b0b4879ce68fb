package internal

import (
	"github.com/goplus/cook/internal/build"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan name@version",
	Short: "Print the build plan of a recipe",
	Long:  `Plan prints the steps a build would run, without downloading or building anything.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	targets, err := parseTargets(args)
	if err != nil {
		return err
	}
	f, err := loadBatch()
	if err != nil {
		return err
	}
	opts, err := builderOptions(cmd, f)
	if err != nil {
		return err
	}
	builder, err := build.NewBuilder(opts)
	if err != nil {
		return err
	}
	p, err := builder.Plan(targets[0])
	if err != nil {
		return err
	}
	p.Print(cmd.OutOrStdout())
	return nil
}

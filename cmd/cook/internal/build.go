package internal

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/goplus/cook/internal/build"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [name@version ...]",
	Short: "Build recipes and publish their packages",
	Long: `Build runs every requested recipe through acquire, plan, build and
package. Without arguments the requires of the batch file are built.
A failing recipe does not stop the others; the exit status is non-zero
if any of them failed.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().IntVarP(&flags.jobs, "jobs", "j", 0, "Recipes built at once (default number of CPUs)")
	buildCmd.Flags().IntVar(&flags.compileJobs, "compile-jobs", 0, "Parallel jobs passed to the native build")
	buildCmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Per-recipe build timeout, 0 for none")
	buildCmd.Flags().BoolVar(&flags.force, "force", false, "Rebuild even if a cached package matches")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	f, err := loadBatch()
	if err != nil {
		return err
	}
	targets, err := parseTargets(args)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		if f == nil {
			return errors.New("nothing to build: give name@version arguments or a batch file")
		}
		targets = f.Targets()
	}

	opts, err := builderOptions(cmd, f)
	if err != nil {
		return err
	}
	builder, err := build.NewBuilder(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rep := builder.BuildAll(ctx, targets)
	if err := rep.WriteTable(cmd.OutOrStdout()); err != nil {
		return err
	}
	if rep.Failed() {
		return errFailed
	}
	return nil
}

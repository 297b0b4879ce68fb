package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/goplus/cook/internal/build"
	"github.com/spf13/cobra"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export name@version",
	Short: "Build a recipe and copy its package out",
	Long: `Export builds a recipe, reusing a cached package when one matches, and
writes the package to the output path: a directory, or a zip archive if the
path ends in .zip.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "out", "", "Output path (directory or .zip file)")
	exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	targets, err := parseTargets(args)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(exportOutput)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	o := builder.Build(ctx, targets[0])
	if !o.OK() {
		return fmt.Errorf("failed to build %s: %w", targets[0], o.Err)
	}
	if o.Artifact == nil {
		return errors.New("no package produced")
	}
	if err := build.Export(o.Artifact.Dir, out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

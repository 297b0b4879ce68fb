package internal

import (
	"github.com/goplus/cook/internal/build"
	"github.com/spf13/cobra"
)

var cleanAll bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove working directories",
	Long:  `Clean removes the working directories. With --all it also removes every published package.`,
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "Also remove published packages")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
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
	return builder.Clean(cleanAll)
}

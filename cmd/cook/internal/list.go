package internal

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/goplus/cook/internal/recipes"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available recipes",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECIPE\tPLATFORMS\tOPTIONS\tDESCRIPTION")
	for _, r := range recipes.All() {
		var pairs []string
		for _, p := range r.Rules.Pairs() {
			pairs = append(pairs, p.String())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, strings.Join(pairs, ","), strings.Join(r.Options.Names(), ","), r.Description)
	}
	return tw.Flush()
}

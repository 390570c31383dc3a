package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/backend"
	"github.com/spf13/cobra"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List enumeration backends",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printBackends(cmd.OutOrStdout())
	},
}

func printBackends(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tAVAILABLE\tDESCRIPTION")
	for _, b := range backend.List() {
		avail := "no"
		if b.Available {
			avail = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Name, avail, b.Description)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}

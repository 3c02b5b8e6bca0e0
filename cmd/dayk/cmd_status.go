package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MARKET\tTOTAL\tSUCCESS\tPENDING\tEMPTY\tFAILED\tCOMPLETE")
	for _, m := range selectedMarkets(a) {
		stats, err := a.Status(cmd.Context(), m)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%.2f%%\n",
			m, stats.Total, stats.Success, stats.Pending, stats.Empty, stats.Failed, stats.SuccessRate())
	}
	return w.Flush()
}

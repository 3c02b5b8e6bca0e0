package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func runHistory(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	scope := []string{""}
	if len(markets) > 0 {
		scope = markets
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tMARKET\tTARGETS\tCOMPLETED\tCACHED\tSUCCESS\tTOTAL\tDURATION\tNOTE")
	for _, m := range scope {
		runs, err := a.History(cmd.Context(), m, historyLimit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			note := r.Error
			if note == "" && r.Interrupted {
				note = "interrupted"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
				r.StartedAt.Format(time.RFC3339), r.Market, r.Targets, r.Completed, r.Cached,
				r.Stats.Success, r.Stats.Total, r.Duration().Round(time.Second), note)
		}
	}
	return w.Flush()
}

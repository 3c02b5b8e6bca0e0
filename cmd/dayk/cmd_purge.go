package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func runPurge(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	for _, m := range markets {
		artifacts, entries, err := a.Purge(cmd.Context(), m)
		if err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: removed %d artifacts, reopened %d entries\n", m, artifacts, entries)
	}
	return nil
}

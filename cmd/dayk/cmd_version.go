package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/dayk/internal/common"
)

func runVersion(cmd *cobra.Command, _ []string) {
	common.LoadVersionFromFile()
	fmt.Fprintf(cmd.OutOrStdout(), "dayk %s\n", common.GetFullVersion())
}

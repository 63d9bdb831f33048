package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// uticaVersion is stamped at release time; left as a development marker
// for builds made directly from source.
const uticaVersion = "0.0.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the utica version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(uticaVersion)
		return nil
	},
}

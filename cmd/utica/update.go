package main

import (
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update [dependencies...]",
	Short: "Re-resolve the project's dependencies and check out and build the result",
	Long: `update re-runs the resolver. With no arguments every dependency is free to
move; naming one or more dependencies restricts resolution to a partial
update (spec's Filter and partial-update rule): named dependencies resolve
freely, everything else stays pinned to its last-resolved version whenever
that version still satisfies the current manifest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.eventLog.Close()

		lockEntries, err := a.resolveDependencies(args)
		if err != nil {
			return err
		}

		return runCheckoutAndBuild(cmd, a, lockEntries)
	},
}

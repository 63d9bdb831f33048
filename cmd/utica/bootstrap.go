package main

import (
	"github.com/spf13/cobra"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap [dependencies...]",
	Short: "Check out and build the dependencies in the project's lockfile, resolving it first if absent",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.eventLog.Close()

		lockEntries, hadLock, err := a.loadLock()
		if err != nil {
			return err
		}
		if !hadLock {
			lockEntries, err = a.resolveDependencies(nil)
			if err != nil {
				return err
			}
		}

		if len(args) > 0 {
			wanted := map[string]bool{}
			for _, name := range args {
				wanted[name] = true
			}
			lockEntries = filterByName(lockEntries, wanted)
		}

		return runCheckoutAndBuild(cmd, a, lockEntries)
	},
}

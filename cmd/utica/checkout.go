package main

import (
	"github.com/spf13/cobra"
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout [dependencies...]",
	Short: "Check out the dependencies in the project's lockfile",
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
			fatalf("utica checkout: no lockfile found; run `utica bootstrap` or `utica update` first")
		}

		if len(args) > 0 {
			wanted := map[string]bool{}
			for _, name := range args {
				wanted[name] = true
			}
			lockEntries = filterByName(lockEntries, wanted)
		}

		if err := a.runCheckout(lockEntries); err != nil {
			return err
		}
		a.log.Success("utica: checkout complete")
		return nil
	},
}

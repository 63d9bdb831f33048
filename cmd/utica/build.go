package main

import (
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [dependencies...]",
	Short: "Build the checked-out dependencies named, or every dependency in the lockfile",
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
			fatalf("utica build: no lockfile found; run `utica bootstrap` or `utica update` first")
		}

		var nameFilter map[string]bool
		if len(args) > 0 {
			nameFilter = map[string]bool{}
			for _, name := range args {
				nameFilter[name] = true
			}
		}

		if err := a.runBuild(cmd.Context(), lockEntries, nameFilter); err != nil {
			return err
		}
		a.log.Success("utica: build complete")
		return nil
	},
}

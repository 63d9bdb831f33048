package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	projectDirectory    string
	useNetrc            bool
	verbose             bool
	logPath             string
	jobs                int
	configuration       string
	platforms           []string
	useBinaries         bool
	useXCFrameworks     bool
	cacheBuilds         bool
	noCheckout          bool
	noBuild             bool
	validSimulatorArchs []string
	toolchain           string
	derivedData         string
	useSubmodules       bool
)

var rootCmd = &cobra.Command{
	Use:   "utica",
	Short: "A dependency manager for Cocoa projects",
	Long: `utica resolves, checks out, and builds the dependencies declared in a
project's Cartfile, without altering the project's own build settings or
requiring a centralized package registry.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&projectDirectory, "project-directory", "", "the directory containing the Cartfile (default: current directory)")
	flags.BoolVar(&useNetrc, "use-netrc", false, "consult ~/.netrc for credentials on authenticated hosts")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVar(&logPath, "log-path", "", "append a newline-delimited JSON event log to this path")
	flags.IntVar(&jobs, "jobs", 0, "maximum number of concurrent builds (default: number of CPUs)")
	flags.StringVar(&configuration, "configuration", "Release", "the build configuration to use")
	flags.StringSliceVar(&platforms, "platform", nil, "restrict to the given platforms (default: all)")
	flags.BoolVar(&useBinaries, "use-binaries", true, "prefer downloading pre-built binaries over building from source")
	flags.BoolVar(&useXCFrameworks, "use-xcframeworks", false, "prefer xcframework binaries over single-platform frameworks")
	flags.BoolVar(&cacheBuilds, "cache-builds", true, "skip a rebuild when the on-disk version file still matches")
	flags.BoolVar(&noCheckout, "no-checkout", false, "skip the checkout step (build only)")
	flags.BoolVar(&noBuild, "no-build", false, "skip the build step (resolve and checkout only)")
	flags.StringSliceVar(&validSimulatorArchs, "valid-simulator-archs", nil, "simulator architectures (the value is not read; frameworks are not stripped)")
	flags.StringVar(&toolchain, "toolchain", "", "the toolchain identifier recorded in version files for the cache check (not passed to the build command)")
	flags.StringVar(&derivedData, "derived-data", "", "the derived data path to pass to the build toolchain")
	flags.BoolVar(&useSubmodules, "use-submodules", false, "add dependencies as git submodules of the project")

	rootCmd.AddCommand(bootstrapCmd, updateCmd, buildCmd, checkoutCmd, validateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/trawl"
)

const unset = "-"

type Flags struct {
	Paths   trawl.StandardPaths
	Profile string
}

func Run() error {
	var conf trawl.Configuration
	var f Flags

	com := &cobra.Command{
		Use:   "trawl",
		Short: "Scan networks for known vulnerabilities",
		Args:  cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initial checks. Checks environment variables and standard paths

			// 1. bind the paths. Overrides defaults.
			trawl.BindStandardPaths(&f.Paths)
			// 2. initialize the configuration
			return trawl.LoadConfiguration(f.Paths, &conf)
		},
	}

	// This set of flags propagates
	fl := com.PersistentFlags()

	stdpaths := &f.Paths
	pathFlags := pflag.NewFlagSet("Standard Paths", pflag.ExitOnError)
	pathFlags.StringVar(&stdpaths.TRAWL_APPNAME, "stdpath.app", unset, "App name")
	pathFlags.StringVar(&stdpaths.CONFIG_HOME, "stdpath.config", unset, "Configuration directory")
	pathFlags.StringVar(&stdpaths.STATE_HOME, "stdpath.state", unset, "State directory")
	pathFlags.StringVar(&stdpaths.DATA_HOME, "stdpath.data", unset, "Data directory")
	fl.AddFlagSet(pathFlags)

	profileFlags := pflag.NewFlagSet("Profile", pflag.ExitOnError)
	profileFlags.StringVar(&f.Profile, "profile", "", "Path to a scan profile file")
	fl.AddFlagSet(profileFlags)

	com.AddCommand(
		scanCommand(&conf, &f),
		findingsCommand(&conf),
		detectorsCommand(&conf, &f),
	)

	return com.Execute()
}

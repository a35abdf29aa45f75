package cmd

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/trawl"
	"github.com/trawl/detectors/apachetraversal"
	"github.com/trawl/pkg/clock"
	"github.com/trawl/pkg/discovery"
	"github.com/trawl/pkg/webclient"
)

type ScanFlags struct {
	// Detectors to run, "*" runs everything registered
	Detectors []string
	// External detector plugins to load from the modules dir
	Modules []string

	// Discovery knobs, override the profile when set
	Ports             []string
	Timing            string
	SkipHostDiscovery bool
	MinRate           int
	Interface         string

	Workers int
	Timeout time.Duration
}

func newProbeClient(profile trawl.Profile) *webclient.Client {
	// Scan targets rarely present valid certificates
	return webclient.New(webclient.Options{
		Timeout:  profile.Timeout,
		Insecure: true,
	})
}

// Registers the detectors shipped with trawl.
func registerBuiltins(registry *trawl.Registry, client *webclient.Client, clk clock.Clock) error {
	builtins := []trawl.Detector{
		apachetraversal.New(client, clk),
	}
	for _, d := range builtins {
		if err := registry.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func (f *ScanFlags) apply(cmd *cobra.Command, profile *trawl.Profile) {
	flags := cmd.Flags()
	if flags.Changed("ports") {
		profile.Ports = f.Ports
	}
	if flags.Changed("timing") {
		profile.Timing = f.Timing
	}
	if flags.Changed("skip-host-discovery") {
		profile.SkipHostDiscovery = f.SkipHostDiscovery
	}
	if flags.Changed("min-rate") {
		profile.MinRate = f.MinRate
	}
	if flags.Changed("workers") {
		profile.Workers = f.Workers
	}
	if flags.Changed("timeout") {
		profile.Timeout = f.Timeout
	}
	if flags.Changed("detectors") {
		profile.Detectors = f.Detectors
	}
}

func scanCommand(conf *trawl.Configuration, root *Flags) *cobra.Command {
	var f ScanFlags

	cmd := &cobra.Command{
		Use:   "scan [targets]...",
		Short: "Discover services and run vulnerability detectors against them",
		Example: `
		$ trawl scan 192.168.1.0/24
		$ trawl scan 10.0.0.5 -D apache-http-cve-2021-42013 --ports 80,8080
		$ trawl scan 10.0.0.5 -M bannerleak
		`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := trawl.LoadProfile(root.Profile)
			if err != nil {
				return err
			}
			f.apply(cmd, &profile)

			registry := trawl.NewRegistry()
			if err := registerBuiltins(registry, newProbeClient(profile), clock.Real()); err != nil {
				return errors.Wrap(err, "failed to register detectors")
			}

			if len(f.Modules) > 0 {
				kill, err := trawl.LoadPluginDetectors(registry, conf.Modules(), f.Modules)
				if err != nil {
					return errors.Wrap(err, "failed to load detector plugins")
				}
				defer kill()
			}

			detectors, err := registry.Select(profile.Detectors)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			targets, err := discovery.Discover(ctx, discovery.Config{
				Ports:             profile.Ports,
				Timing:            profile.Timing,
				SkipHostDiscovery: profile.SkipHostDiscovery,
				MinRate:           profile.MinRate,
				Interface:         f.Interface,
			}, args)
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				log.Info().Msg("no services discovered")
				return nil
			}

			repos := trawl.NewRepositories(conf.Database())
			emitter := trawl.NewEmitter()
			emitter.Subscribe(
				trawl.NewLogReporter(log.Logger),
				trawl.NewJSONReporter(conf.Reports()),
			)

			engine := trawl.NewEngine(repos, emitter, clock.Real(), profile.Workers)
			run, err := engine.Run(ctx, targets, detectors)
			if err != nil {
				return err
			}

			log.Info().Str("run", run.RunID).Msg("scan run recorded")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&f.Detectors, "detectors", "D", []string{"*"}, "Detectors to run. By default runs all of them")
	flags.StringArrayVarP(&f.Modules, "modules", "M", []string{}, "External detector plugins to load")
	flags.StringSliceVar(&f.Ports, "ports", nil, "Ports to discover, nmap syntax")
	flags.StringVar(&f.Timing, "timing", "", "Discovery timing template (T0-T5)")
	flags.BoolVar(&f.SkipHostDiscovery, "skip-host-discovery", false, "Treat all targets as online (-Pn)")
	flags.IntVar(&f.MinRate, "min-rate", 0, "Minimum discovery probe rate")
	flags.StringVar(&f.Interface, "interface", "", "Network interface to scan from")
	flags.IntVar(&f.Workers, "workers", 0, "Concurrent targets")
	flags.DurationVar(&f.Timeout, "timeout", 0, "HTTP timeout for detector probes")

	return cmd
}

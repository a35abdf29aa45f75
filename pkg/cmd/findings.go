package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trawl"
	"github.com/trawl/pkg/clock"
)

type FindingFlags struct {
	Run      string
	Vuln     string
	Severity string
}

func findingsCommand(conf *trawl.Configuration) *cobra.Command {
	var f FindingFlags

	cmd := &cobra.Command{
		Use:   "findings [--run id] [--vuln id] [--severity s]",
		Short: "List recorded findings",
		RunE: func(cmd *cobra.Command, args []string) error {
			repos := trawl.NewRepositories(conf.Database())
			findings, err := repos.Findings().GetFindings(trawl.FindingFilters{
				RunID:    f.Run,
				VulnID:   f.Vuln,
				Severity: trawl.Severity(f.Severity),
			})
			if err != nil {
				return err
			}

			for _, finding := range findings {
				at := time.UnixMilli(finding.DetectedAt).UTC().Format(time.RFC3339)
				fmt.Printf("%s\t%s\t%s\t%s\n", at, finding.Ref(), finding.Severity, finding.Title)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.Run, "run", "", "Only findings from the given run")
	flags.StringVar(&f.Vuln, "vuln", "", "Only findings with the given vulnerability id")
	flags.StringVar(&f.Severity, "severity", "", "Only findings with the given severity")

	return cmd
}

func detectorsCommand(conf *trawl.Configuration, root *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "detectors",
		Short: "List the built-in detectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := trawl.LoadProfile(root.Profile)
			if err != nil {
				return err
			}

			registry := trawl.NewRegistry()
			if err := registerBuiltins(registry, newProbeClient(profile), clock.Real()); err != nil {
				return err
			}

			for _, d := range registry.List() {
				info := d.Info()
				fmt.Printf("%s\t%s\t%s\n", info.Name, info.Version, info.Description)
			}
			return nil
		},
	}
}

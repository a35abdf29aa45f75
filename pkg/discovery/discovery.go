// Service discovery. Runs an nmap scan with service detection
// over the requested targets and maps the results into trawl
// targets and services for the engine to consume.
package discovery

import (
	"context"
	"strings"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/trawl"
)

type Config struct {
	// Ports in nmap syntax. Empty scans nmap's defaults
	Ports []string
	// Timing template: T0..T5
	Timing string
	// Skip host discovery (-Pn)
	SkipHostDiscovery bool
	// Minimum probe rate
	MinRate int
	// Network interface to scan from
	Interface string
}

var timings = map[string]nmap.Timing{
	"T0": nmap.TimingSlowest,
	"T1": nmap.TimingSneaky,
	"T2": nmap.TimingPolite,
	"T3": nmap.TimingNormal,
	"T4": nmap.TimingAggressive,
	"T5": nmap.TimingFastest,
}

func (c Config) options(targets []string) []nmap.Option {
	opts := []nmap.Option{
		nmap.WithTargets(targets...),
		nmap.WithDisabledDNSResolution(),
		nmap.WithServiceInfo(),
		nmap.WithOpenOnly(),
	}

	if len(c.Ports) > 0 {
		opts = append(opts, nmap.WithPorts(strings.Join(c.Ports, ",")))
	}
	if c.SkipHostDiscovery {
		opts = append(opts, nmap.WithSkipHostDiscovery())
	}
	if c.MinRate > 0 {
		opts = append(opts, nmap.WithMinRate(c.MinRate))
	}
	if c.Interface != "" {
		opts = append(opts, nmap.WithInterface(c.Interface))
	}
	if timing, ok := timings[c.Timing]; ok {
		opts = append(opts, nmap.WithTimingTemplate(timing))
	}
	return opts
}

// Discover scans the given targets (addresses or CIDRs) and
// returns one trawl target per responding host, with its open
// services classified.
func Discover(ctx context.Context, conf Config, targets []string) ([]*trawl.Target, error) {
	if len(targets) == 0 {
		return nil, errors.New("no targets to discover")
	}

	scanner, err := nmap.NewScanner(ctx, conf.options(targets)...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create nmap scanner")
	}

	log.Info().Strs("targets", targets).Msg("starting discovery")
	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, errors.Wrap(err, "discovery scan failed")
	}
	if warnings != nil && len(*warnings) > 0 {
		log.Warn().Strs("warnings", *warnings).Msg("discovery produced warnings")
	}

	var out []*trawl.Target
	for _, h := range result.Hosts {
		target := fromHost(h)
		if target == nil {
			continue
		}
		out = append(out, target)
	}

	log.Info().Int("targets", len(out)).Msg("discovery finished")
	return out, nil
}

func fromHost(h nmap.Host) *trawl.Target {
	addr := pickAddress(h)
	if addr == "" {
		return nil
	}

	target := &trawl.Target{Address: addr}
	if len(h.Hostnames) > 0 {
		target.Hostname = h.Hostnames[0].Name
	}

	for _, p := range h.Ports {
		if !strings.HasPrefix(strings.ToLower(p.State.State), "open") {
			continue
		}
		svc := FromPort(p).WithTarget(target)
		target.Services = append(target.Services, svc)
	}

	if len(target.Services) == 0 {
		return nil
	}
	return target
}

func pickAddress(h nmap.Host) string {
	for _, a := range h.Addresses {
		if a.Addr != "" {
			return a.Addr
		}
	}
	return ""
}

// FromPort maps one nmap port entry to a trawl service. TLS
// tunneled http is renamed https so web detectors pick the
// right scheme.
func FromPort(p nmap.Port) *trawl.Service {
	name := p.Service.Name
	if name == "http" && p.Service.Tunnel == "ssl" {
		name = "https"
	}

	return &trawl.Service{
		Port:     uint16(p.ID),
		Protocol: p.Protocol,
		Name:     name,
		Product:  p.Service.Product,
		Version:  p.Service.Version,
		Tunnel:   p.Service.Tunnel,
	}
}

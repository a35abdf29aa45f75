package trawl

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/trawl/pkg/clock"
)

const defaultWorkers = 8

// The engine schedules detectors over targets. Each target is an
// independent unit of work: targets fan out over a bounded worker
// pool while detectors for one target run sequentially. A failing
// detector is logged and skipped; it never aborts the run.
type Engine struct {
	repos   *repositoryRegistry
	emitter Emitter
	clock   clock.Clock
	workers int
}

func NewEngine(repos *repositoryRegistry, emitter Emitter, clk clock.Clock, workers int) *Engine {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Engine{
		repos:   repos,
		emitter: emitter,
		clock:   clk,
		workers: workers,
	}
}

// A confirmed detection, still linked to the records that
// triggered it so reporters can name them.
type detection struct {
	finding *Finding
	target  *Target
	service *Service
}

// Run persists the targets, schedules the detectors over them,
// stores the confirmed findings and reports them through the
// emitter. Returns the finished scan run.
func (e *Engine) Run(ctx context.Context, targets []*Target, detectors []Detector) (*ScanRun, error) {
	if err := e.repos.Targets().AddTargets(targets...); err != nil {
		return nil, errors.Wrap(err, "failed to store targets")
	}

	run := &ScanRun{
		RunID:     uuid.NewString(),
		StartedAt: e.clock.Now().UnixMilli(),
		Targets:   len(targets),
	}
	if err := e.repos.Runs().AddRun(run); err != nil {
		return nil, errors.Wrap(err, "failed to register scan run")
	}

	detections := e.scan(ctx, targets, detectors)

	findings := make([]*Finding, 0, len(detections))
	for _, d := range detections {
		d.finding.RunID = run.RunID
		findings = append(findings, d.finding)
	}
	if err := e.repos.Findings().AddFindings(findings...); err != nil {
		return nil, errors.Wrap(err, "failed to store findings")
	}

	for _, d := range detections {
		event := Event{
			Type:    ON_FINDING,
			RunID:   run.RunID,
			Finding: d.finding,
			Target:  d.target,
			Service: d.service,
		}
		if err := e.emitter.Emit(event); err != nil {
			return nil, errors.Wrap(err, "failed to report finding")
		}
	}

	run.FinishedAt = e.clock.Now().UnixMilli()
	run.Findings = len(findings)
	if err := e.repos.Runs().FinishRun(run); err != nil {
		return nil, errors.Wrap(err, "failed to finish scan run")
	}

	event := Event{Type: ON_RUN, RunID: run.RunID, Run: run}
	if err := e.emitter.Emit(event); err != nil {
		return nil, errors.Wrap(err, "failed to report scan run")
	}
	return run, nil
}

func (e *Engine) scan(ctx context.Context, targets []*Target, detectors []Detector) []detection {
	jobs := make(chan *Target)

	var mu sync.Mutex
	var detections []detection

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range jobs {
				found := e.scanTarget(ctx, target, detectors)
				mu.Lock()
				detections = append(detections, found...)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- target:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return detections
}

func (e *Engine) scanTarget(ctx context.Context, target *Target, detectors []Detector) []detection {
	// Relink services to their target; the back-pointer does not
	// survive a database round trip
	services := make(map[uint]*Service, len(target.Services))
	for _, svc := range target.Services {
		svc.WithTarget(target)
		services[svc.ID] = svc
	}

	var detections []detection
	for _, det := range detectors {
		findings, err := det.Detect(ctx, target, target.Services)
		if err != nil {
			log.Warn().Err(err).
				Str("detector", det.Info().Name).
				Str("target", target.Host()).
				Msg("detector failed, skipping")
			continue
		}

		for _, f := range findings {
			detections = append(detections, detection{
				finding: f,
				target:  target,
				service: services[f.ServiceID],
			})
		}
	}
	return detections
}

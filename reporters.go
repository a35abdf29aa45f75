package trawl

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Console reporter. Logs each finding as it is confirmed and a
// summary line when the run finishes.
type logReporter struct {
	logger zerolog.Logger
}

func NewLogReporter(logger zerolog.Logger) Subscriber {
	return &logReporter{logger: logger}
}

func (r *logReporter) Topics() []EventType {
	return []EventType{ON_FINDING, ON_RUN}
}

func (r *logReporter) Handle(e Event) error {
	switch e.Type {
	case ON_FINDING:
		f := e.Finding
		r.logger.Info().
			Str("run", e.RunID).
			Str("vuln", f.Ref()).
			Str("severity", string(f.Severity)).
			Str("target", e.Target.Host()).
			Uint16("port", e.Service.Port).
			Msg(f.Title)
	case ON_RUN:
		r.logger.Info().
			Str("run", e.RunID).
			Int("targets", e.Run.Targets).
			Int("findings", e.Run.Findings).
			Msg("scan finished")
	}
	return nil
}

type reportEntry struct {
	Target      string         `json:"target"`
	Port        uint16         `json:"port"`
	Service     string         `json:"service"`
	Publisher   string         `json:"publisher"`
	VulnID      string         `json:"vuln_id"`
	Severity    Severity       `json:"severity"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Remediation string         `json:"remediation"`
	DetectedAt  int64          `json:"detected_at"`
	Details     map[string]any `json:"details,omitempty"`
}

// Aggregates findings in memory and writes one JSON report per
// run into the workspace when the run finishes.
type jsonReporter struct {
	mu      sync.Mutex
	dir     string
	entries []reportEntry
}

func NewJSONReporter(dir string) Subscriber {
	return &jsonReporter{dir: dir}
}

func (r *jsonReporter) Topics() []EventType {
	return []EventType{ON_FINDING, ON_RUN}
}

func (r *jsonReporter) Handle(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Type {
	case ON_FINDING:
		f := e.Finding

		var details map[string]any
		if len(f.Details) > 0 {
			_ = json.Unmarshal(f.Details, &details)
		}

		r.entries = append(r.entries, reportEntry{
			Target:      e.Target.Host(),
			Port:        e.Service.Port,
			Service:     e.Service.Name,
			Publisher:   f.Publisher,
			VulnID:      f.VulnID,
			Severity:    f.Severity,
			Title:       f.Title,
			Description: f.Description,
			Remediation: f.Remediation,
			DetectedAt:  f.DetectedAt,
			Details:     details,
		})
		return nil

	case ON_RUN:
		return r.flush(e.RunID)
	}
	return nil
}

func (r *jsonReporter) flush(runID string) error {
	if err := os.MkdirAll(r.dir, 0700); err != nil {
		return errors.Wrap(err, "failed to create report directory")
	}

	report := struct {
		RunID    string        `json:"run_id"`
		Findings []reportEntry `json:"findings"`
	}{RunID: runID, Findings: r.entries}

	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal report")
	}

	fpath := filepath.Join(r.dir, runID+".json")
	if err := os.WriteFile(fpath, b, 0600); err != nil {
		return errors.Wrap(err, "failed to write report")
	}

	r.entries = nil
	return nil
}

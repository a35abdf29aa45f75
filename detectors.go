package trawl

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Static properties of a detector: name, version, what it
// checks for, and who wrote it.
type DetectorInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Author      string `json:"author"`
}

// A detector inspects the services of a single target and
// returns a finding per service it can confirm vulnerable.
// Detectors are stateless between calls; the engine may run
// them over many targets concurrently.
type Detector interface {
	Info() DetectorInfo
	Detect(ctx context.Context, target *Target, services []*Service) ([]*Finding, error)
}

// Registry of detectors by name. Built-in detectors register
// at startup; external plugin detectors are added as they load.
type Registry struct {
	mu        sync.RWMutex
	detectors map[string]Detector
}

func NewRegistry() *Registry {
	return &Registry{detectors: make(map[string]Detector)}
}

func (r *Registry) Register(d Detector) error {
	name := d.Info().Name
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.detectors[name]; ok {
		return fmt.Errorf("detector already registered: %s", name)
	}
	r.detectors[name] = d
	return nil
}

func (r *Registry) Get(name string) (Detector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.detectors[name]
	if !ok {
		return nil, fmt.Errorf("detector not found: %s", name)
	}
	return d, nil
}

// Resolves a selection of detector names. The wildcard "*"
// or an empty selection yields every registered detector.
func (r *Registry) Select(names []string) ([]Detector, error) {
	if len(names) == 0 || (len(names) == 1 && names[0] == "*") {
		return r.List(), nil
	}

	var selected []Detector
	for _, name := range names {
		d, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		selected = append(selected, d)
	}
	return selected, nil
}

func (r *Registry) List() []Detector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Detector, 0, len(r.detectors))
	for _, d := range r.detectors {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Info().Name < list[j].Info().Name
	})
	return list
}

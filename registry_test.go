package trawl

import (
	"context"
	"testing"
)

type staticDetector struct {
	name     string
	findings []*Finding
	err      error
}

func (d *staticDetector) Info() DetectorInfo {
	return DetectorInfo{Name: d.name, Version: "1.0"}
}

func (d *staticDetector) Detect(ctx context.Context, target *Target, services []*Service) ([]*Finding, error) {
	return d.findings, d.err
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(&staticDetector{name: "a"}); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	if err := reg.Register(&staticDetector{name: "a"}); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	if _, err := reg.Get("a"); err != nil {
		t.Errorf("failed to get registered detector: %v", err)
	}
	if _, err := reg.Get("missing"); err == nil {
		t.Error("expected lookup of unknown detector to fail")
	}
}

func TestRegistrySelect(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"b", "a", "c"} {
		if err := reg.Register(&staticDetector{name: name}); err != nil {
			t.Fatalf("failed to register: %v", err)
		}
	}

	all, err := reg.Select([]string{"*"})
	if err != nil {
		t.Fatalf("wildcard selection failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 detectors, got %d", len(all))
	}
	// List is sorted by name
	if all[0].Info().Name != "a" {
		t.Errorf("expected sorted list, got %s first", all[0].Info().Name)
	}

	some, err := reg.Select([]string{"c"})
	if err != nil {
		t.Fatalf("selection failed: %v", err)
	}
	if len(some) != 1 || some[0].Info().Name != "c" {
		t.Errorf("unexpected selection: %v", some)
	}

	if _, err := reg.Select([]string{"nope"}); err == nil {
		t.Error("expected selection of unknown detector to fail")
	}
}

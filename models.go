package trawl

import (
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// A target is a single scanned host. It owns the services
// discovered on it and the findings raised against them.
type Target struct {
	gorm.Model

	// Network address. IP or resolvable name
	Address string `gorm:"index"`
	// Optional hostname when discovery resolved one
	Hostname string

	Services []*Service `gorm:"foreignKey:TargetID;constraint:OnDelete:CASCADE"`
}

// Returns the hostname when available, the address otherwise.
func (t *Target) Host() string {
	if t.Hostname != "" {
		return t.Hostname
	}
	return t.Address
}

// A single network service discovered on a target during a
// measurement. Opaque to detectors beyond its web-ness and
// base URL; detectors that need more read the banner fields.
type Service struct {
	gorm.Model

	TargetID uint

	Port uint16
	// Transport protocol: tcp, udp
	Protocol string
	// Service name as reported by discovery: http, https, ssh...
	Name string
	// Product and version banner, when fingerprinted
	Product string
	Version string
	// Tunnel wrapping the service, e.g. "ssl"
	Tunnel string

	target *Target
}

// WithTarget links the service back to its owning target so
// URL construction can name the host. Discovery sets this.
func (s *Service) WithTarget(t *Target) *Service {
	s.target = t
	return s
}

// Whether the service speaks HTTP(S). Non-web services never
// reach web detectors.
func (s *Service) IsWeb() bool {
	switch s.Name {
	case "http", "https", "http-alt", "http-proxy":
		return true
	}
	return false
}

func (s *Service) scheme() string {
	if s.Name == "https" || s.Tunnel == "ssl" {
		return "https"
	}
	return "http"
}

// The web application root for this service, with a trailing
// slash. Default ports are elided.
func (s *Service) WebRootURL() string {
	scheme := s.scheme()
	host := s.target.Host()

	if (scheme == "http" && s.Port == 80) || (scheme == "https" && s.Port == 443) {
		return fmt.Sprintf("%s://%s/", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d/", scheme, host, s.Port)
}

type Severity string

const (
	SEV_LOW      Severity = "LOW"
	SEV_MEDIUM   Severity = "MEDIUM"
	SEV_HIGH     Severity = "HIGH"
	SEV_CRITICAL Severity = "CRITICAL"
)

// A finding is an immutable detection record. It is only ever
// constructed for a service that passed a detector's check.
type Finding struct {
	gorm.Model

	// Scan run that produced this finding
	RunID string `gorm:"index"`

	TargetID  uint
	ServiceID uint

	// Vulnerability identity, e.g. TSUNAMI_COMMUNITY / CVE_2021_42013
	Publisher string
	VulnID    string `gorm:"index"`

	Severity    Severity
	Title       string
	Description string
	Remediation string

	// Milliseconds since epoch, stamped at detection time
	DetectedAt int64

	// Detector evidence: probed URL, status, banners...
	Details datatypes.JSON
}

func (f *Finding) Ref() string {
	return strings.Join([]string{f.Publisher, f.VulnID}, "/")
}

// A scan run groups the findings of one engine invocation.
type ScanRun struct {
	gorm.Model

	RunID      string `gorm:"uniqueIndex"`
	StartedAt  int64
	FinishedAt int64

	Targets  int
	Findings int
}

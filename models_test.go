package trawl

import "testing"

type urlTester struct {
	service *Service
	target  *Target
	web     bool
	url     string
}

func (ut *urlTester) runTest(test *testing.T, name string) {
	svc := ut.service.WithTarget(ut.target)

	if got := svc.IsWeb(); got != ut.web {
		test.Errorf("[%s] expected IsWeb %v, got %v", name, ut.web, got)
	}
	if !ut.web {
		return
	}
	if got := svc.WebRootURL(); got != ut.url {
		test.Errorf("[%s] expected %q, got %q", name, ut.url, got)
	}
}

var urlTests = map[string]*urlTester{
	"http-default-port": {
		target:  &Target{Address: "10.0.0.1"},
		service: &Service{Port: 80, Protocol: "tcp", Name: "http"},
		web:     true,
		url:     "http://10.0.0.1/",
	},
	"http-alt-port": {
		target:  &Target{Address: "10.0.0.1"},
		service: &Service{Port: 8080, Protocol: "tcp", Name: "http"},
		web:     true,
		url:     "http://10.0.0.1:8080/",
	},
	"https-default-port": {
		target:  &Target{Address: "10.0.0.1"},
		service: &Service{Port: 443, Protocol: "tcp", Name: "https"},
		web:     true,
		url:     "https://10.0.0.1/",
	},
	"ssl-tunneled-http": {
		target:  &Target{Address: "10.0.0.1"},
		service: &Service{Port: 8443, Protocol: "tcp", Name: "http", Tunnel: "ssl"},
		web:     true,
		url:     "https://10.0.0.1:8443/",
	},
	"hostname-preferred": {
		target:  &Target{Address: "10.0.0.1", Hostname: "web.lan"},
		service: &Service{Port: 80, Protocol: "tcp", Name: "http"},
		web:     true,
		url:     "http://web.lan/",
	},
	"ssh-not-web": {
		target:  &Target{Address: "10.0.0.1"},
		service: &Service{Port: 22, Protocol: "tcp", Name: "ssh"},
		web:     false,
	},
}

func TestServiceURLs(t *testing.T) {
	for name, tester := range urlTests {
		tester.runTest(t, name)
	}
}

func TestFindingRef(t *testing.T) {
	f := &Finding{Publisher: "TSUNAMI_COMMUNITY", VulnID: "CVE_2021_42013"}
	if got := f.Ref(); got != "TSUNAMI_COMMUNITY/CVE_2021_42013" {
		t.Errorf("unexpected ref: %q", got)
	}
}

package discovery

import (
	"testing"

	nmap "github.com/Ullaakut/nmap/v3"
)

type portTester struct {
	port nmap.Port
	name string
	web  bool
}

func (pt *portTester) runTest(test *testing.T, name string) {
	svc := FromPort(pt.port)

	if svc.Name != pt.name {
		test.Errorf("[%s] expected service %q, got %q", name, pt.name, svc.Name)
	}
	if got := svc.IsWeb(); got != pt.web {
		test.Errorf("[%s] expected web %v, got %v", name, pt.web, got)
	}
	if svc.Port != uint16(pt.port.ID) {
		test.Errorf("[%s] port lost in mapping: %d", name, svc.Port)
	}
}

var portTests = map[string]*portTester{
	"plain-http": {
		port: nmap.Port{
			ID:       80,
			Protocol: "tcp",
			Service:  nmap.Service{Name: "http", Product: "Apache httpd", Version: "2.4.49"},
		},
		name: "http",
		web:  true,
	},
	"tls-tunneled-http": {
		port: nmap.Port{
			ID:       8443,
			Protocol: "tcp",
			Service:  nmap.Service{Name: "http", Tunnel: "ssl"},
		},
		name: "https",
		web:  true,
	},
	"ssh": {
		port: nmap.Port{
			ID:       22,
			Protocol: "tcp",
			Service:  nmap.Service{Name: "ssh", Product: "OpenSSH"},
		},
		name: "ssh",
		web:  false,
	},
}

func TestFromPort(t *testing.T) {
	for name, tester := range portTests {
		tester.runTest(t, name)
	}
}

func TestFromHostSkipsClosedPorts(t *testing.T) {
	h := nmap.Host{
		Addresses: []nmap.Address{{Addr: "10.0.0.1"}},
		Hostnames: []nmap.Hostname{{Name: "web.lan"}},
		Ports: []nmap.Port{
			{ID: 80, Protocol: "tcp", State: nmap.State{State: "open"}, Service: nmap.Service{Name: "http"}},
			{ID: 443, Protocol: "tcp", State: nmap.State{State: "closed"}, Service: nmap.Service{Name: "https"}},
		},
	}

	target := fromHost(h)
	if target == nil {
		t.Fatal("expected a target")
	}
	if target.Address != "10.0.0.1" || target.Hostname != "web.lan" {
		t.Errorf("host identity lost: %s/%s", target.Address, target.Hostname)
	}
	if len(target.Services) != 1 || target.Services[0].Port != 80 {
		t.Errorf("expected only the open port, got %v", target.Services)
	}

	// the back-pointer is set, so URL building works straight away
	if got := target.Services[0].WebRootURL(); got != "http://web.lan/" {
		t.Errorf("unexpected web root: %s", got)
	}
}

func TestFromHostWithoutServices(t *testing.T) {
	h := nmap.Host{
		Addresses: []nmap.Address{{Addr: "10.0.0.2"}},
		Ports: []nmap.Port{
			{ID: 80, Protocol: "tcp", State: nmap.State{State: "closed"}},
		},
	}
	if target := fromHost(h); target != nil {
		t.Errorf("expected no target for a host without open services, got %+v", target)
	}
}

package trawl

import (
	"context"
	"net/rpc"
	"os/exec"
	"path/filepath"

	"github.com/hashicorp/go-plugin"
	"github.com/pkg/errors"
)

// External detectors are separate binaries spoken to over
// hashicorp's plugin RPC. The wire contract mirrors Detector,
// minus the context: cancellation stops at the process boundary.

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "TRAWL",
	MagicCookieValue: "TRAWL",
}

type DetectRequest struct {
	Target   *Target
	Services []*Service
}

type DetectorRPC interface {
	Info() (DetectorInfo, error)
	Detect(req DetectRequest) ([]*Finding, error)
}

type detectorRPCClient struct {
	client *rpc.Client
}

func (g *detectorRPCClient) Info() (DetectorInfo, error) {
	var info DetectorInfo
	if err := g.client.Call("Plugin.Info", struct{}{}, &info); err != nil {
		return info, err
	}
	return info, nil
}

func (g *detectorRPCClient) Detect(req DetectRequest) ([]*Finding, error) {
	var findings []*Finding
	if err := g.client.Call("Plugin.Detect", req, &findings); err != nil {
		return nil, err
	}
	return findings, nil
}

type DetectorRPCServer struct {
	Impl Detector
}

func (s *DetectorRPCServer) Info(_ struct{}, info *DetectorInfo) error {
	*info = s.Impl.Info()
	return nil
}

func (s *DetectorRPCServer) Detect(req DetectRequest, findings *[]*Finding) error {
	// Service back-pointers do not cross the wire
	for _, svc := range req.Services {
		svc.WithTarget(req.Target)
	}

	f, err := s.Impl.Detect(context.Background(), req.Target, req.Services)
	if err != nil {
		return err
	}
	*findings = f
	return nil
}

type DetectorPlugin struct {
	Impl Detector
}

func (p *DetectorPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &DetectorRPCServer{Impl: p.Impl}, nil
}

func (p *DetectorPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &detectorRPCClient{client: c}, nil
}

var PluginMap = map[string]plugin.Plugin{
	"detector": &DetectorPlugin{},
}

// A loaded plugin wrapped as an in-process Detector.
type pluginDetector struct {
	info   DetectorInfo
	raw    DetectorRPC
	client *plugin.Client
}

func (d *pluginDetector) Info() DetectorInfo { return d.info }

func (d *pluginDetector) Detect(_ context.Context, target *Target, services []*Service) ([]*Finding, error) {
	return d.raw.Detect(DetectRequest{Target: target, Services: services})
}

type pluginFactory struct {
	modulesPath string
	loaded      []*pluginDetector
}

func newPluginFactory(path string) *pluginFactory {
	return &pluginFactory{modulesPath: path}
}

// Loads a detector binary from the modules directory and
// registers it like any built-in detector.
func (f *pluginFactory) loadDetector(name string) (Detector, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginMap,
		Cmd:             exec.Command(filepath.Join(f.modulesPath, name)),
	})

	rpcClient, err := client.Client()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load detector plugin %s", name)
	}

	raw, err := rpcClient.Dispense("detector")
	if err != nil {
		return nil, err
	}

	remote := raw.(DetectorRPC)
	info, err := remote.Info()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query detector plugin %s", name)
	}

	d := &pluginDetector{info: info, raw: remote, client: client}
	f.loaded = append(f.loaded, d)
	return d, nil
}

func (f *pluginFactory) kill() {
	for _, d := range f.loaded {
		d.client.Kill()
	}
}

// Loads every external detector named in names into the registry.
func LoadPluginDetectors(registry *Registry, modulesPath string, names []string) (func(), error) {
	factory := newPluginFactory(modulesPath)
	for _, name := range names {
		d, err := factory.loadDetector(name)
		if err != nil {
			factory.kill()
			return nil, err
		}
		if err := registry.Register(d); err != nil {
			factory.kill()
			return nil, err
		}
	}
	return factory.kill, nil
}

// SDK for out-of-process detectors. A detector binary implements
// trawl.Detector and hands it to Serve; the engine loads it from
// the modules directory by name.
package sdk

import (
	"github.com/hashicorp/go-plugin"

	"github.com/trawl"
)

func Serve(d trawl.Detector) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: trawl.HandshakeConfig,
		Plugins: map[string]plugin.Plugin{
			"detector": &trawl.DetectorPlugin{Impl: d},
		},
	})
}

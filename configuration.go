package trawl

import (
	"os"
	"path"
	"slices"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Standard paths used to store trawl related data
// https://specifications.freedesktop.org/basedir-spec/latest/
type StandardPaths struct {
	// Can be used to change the profile
	// Default: "trawl"
	TRAWL_APPNAME string
	// Path to configuration directory.
	// Default: "$XDG_CONFIG_HOME/$TRAWL_APPNAME" or "$HOME/.config/$TRAWL_APPNAME" if unset
	CONFIG_HOME string
	// Path to state directory
	// Default: "$XDG_STATE_HOME/$TRAWL_APPNAME" or "$HOME/.local/state/$TRAWL_APPNAME" if unset
	STATE_HOME string
	// Path to data directory
	// Default: "$XDG_DATA_HOME/$TRAWL_APPNAME" or "$HOME/.local/share/$TRAWL_APPNAME"
	DATA_HOME string
}

func (s StandardPaths) init() error {
	for _, p := range []string{s.CONFIG_HOME, s.STATE_HOME, s.DATA_HOME} {
		if err := os.MkdirAll(p, 0700); err != nil {
			return errors.Wrapf(err, "failed to create standard path: %s", p)
		}
	}
	return nil
}

type stdpathsBuilder struct {
	stdpaths *StandardPaths
	home     string

	app    string
	config string
	state  string
	data   string
}

func newStdpathsBuilder() *stdpathsBuilder {
	return &stdpathsBuilder{home: os.Getenv("HOME")}
}

func (b *stdpathsBuilder) withStdpaths(stdpaths *StandardPaths) *stdpathsBuilder {
	bcp := *b
	bcp.stdpaths = stdpaths
	return &bcp
}

func (b *stdpathsBuilder) isValid(val string) bool {
	return !slices.Contains([]string{"", "-"}, val)
}

func (b *stdpathsBuilder) bind(val, env, def string) string {
	if b.isValid(val) {
		return val
	}
	if v := os.Getenv(env); b.isValid(v) {
		return v
	}
	return def
}

func (b *stdpathsBuilder) bindToApp(val, env, def string) string {
	v := b.bind(val, env, def)
	if v == val {
		return val
	}
	return path.Join(v, b.app)
}

func (b *stdpathsBuilder) setApp(val string) *stdpathsBuilder {
	b.app = b.bind(val, "TRAWL_APPNAME", "trawl")
	return b
}

func (b *stdpathsBuilder) setConfig(val string) *stdpathsBuilder {
	b.config = b.bindToApp(val, "XDG_CONFIG_HOME", path.Join(b.home, ".config"))
	return b
}

func (b *stdpathsBuilder) setState(val string) *stdpathsBuilder {
	b.state = b.bindToApp(val, "XDG_STATE_HOME", path.Join(b.home, ".local", "state"))
	return b
}

func (b *stdpathsBuilder) setData(val string) *stdpathsBuilder {
	b.data = b.bindToApp(val, "XDG_DATA_HOME", path.Join(b.home, ".local", "share"))
	return b
}

func (b *stdpathsBuilder) build() *StandardPaths {
	stdpaths := b.stdpaths
	stdpaths.TRAWL_APPNAME = b.app
	stdpaths.CONFIG_HOME = b.config
	stdpaths.STATE_HOME = b.state
	stdpaths.DATA_HOME = b.data
	return stdpaths
}

// Overrides empty standard paths. More of a purge or clean job.
func BindStandardPaths(stdpaths *StandardPaths) *StandardPaths {
	b := newStdpathsBuilder().withStdpaths(stdpaths)
	return b.setApp(stdpaths.TRAWL_APPNAME).
		setConfig(stdpaths.CONFIG_HOME).
		setData(stdpaths.DATA_HOME).
		setState(stdpaths.STATE_HOME).
		build()
}

type Configuration struct {
	paths StandardPaths
}

// Returns the location where external detector modules live
func (c *Configuration) Modules() string {
	return path.Join(c.paths.DATA_HOME, "modules")
}

// Returns the location of the results database
func (c *Configuration) Database() DatabaseLocation {
	return DatabaseLocation(path.Join(c.paths.STATE_HOME, "results.db"))
}

// Returns the location where run reports are written
func (c *Configuration) Reports() string {
	return path.Join(c.paths.STATE_HOME, "reports")
}

func LoadConfiguration(stdpaths StandardPaths, conf *Configuration) error {
	// initialize paths
	if err := stdpaths.init(); err != nil {
		return errors.Wrap(err, "failed to initialize standard paths")
	}

	conf.paths = stdpaths
	return nil
}

// A scan profile: the tunables of one measurement, kept in a
// YAML file so studies can be re-run with the same setup.
type Profile struct {
	// Ports passed to discovery, nmap syntax
	Ports []string `yaml:"ports"`
	// Timing template: T0..T5
	Timing string `yaml:"timing"`
	// Skip host discovery (-Pn)
	SkipHostDiscovery bool `yaml:"skip_host_discovery"`
	// Minimum probe rate
	MinRate int `yaml:"min_rate"`

	// Detectors to run. Empty or "*" selects all
	Detectors []string `yaml:"detectors"`
	// Concurrent targets
	Workers int `yaml:"workers"`
	// HTTP timeout for detector probes
	Timeout time.Duration `yaml:"timeout"`
}

func DefaultProfile() Profile {
	return Profile{
		Ports:     []string{"80", "443", "8080", "8443"},
		Timing:    "T3",
		Detectors: []string{"*"},
		Workers:   defaultWorkers,
		Timeout:   10 * time.Second,
	}
}

func LoadProfile(fpath string) (Profile, error) {
	profile := DefaultProfile()
	if fpath == "" {
		return profile, nil
	}

	b, err := os.ReadFile(fpath)
	if err != nil {
		return profile, errors.Wrap(err, "failed to read profile")
	}
	if err := yaml.Unmarshal(b, &profile); err != nil {
		return profile, errors.Wrap(err, "failed to parse profile")
	}
	return profile, nil
}

// Package chainconfig owns the TOML configuration schema of §6 and the
// check_consistency rule set the conductor (internal/conductor) runs
// before booting and before committing any transactional admin mutation
// (§4.8). Parsing itself uses github.com/BurntSushi/toml, the same
// library the ethereum-go-ethereum and tos-network-gtos examples reach
// for whenever they need a human-editable config file; the spec's
// "configuration file parsing" non-goal excludes a generic TOML grammar,
// not this schema and its validation, which the conductor's transactional
// admin operations directly depend on (SPEC_FULL.md AMBIENT STACK).
package chainconfig

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// StorageKind selects an instance's persistence backend (§6).
type StorageKind string

const (
	StorageMemory StorageKind = "memory"
	StorageFile   StorageKind = "file"
	StoragePickle StorageKind = "pickle"
	StorageLMDB   StorageKind = "lmdb"
)

// NetworkKind selects the P2P transport an instance's agent uses to
// reach the switchboard (§6, §4.8 boot step 2).
type NetworkKind string

const (
	NetworkN3H    NetworkKind = "n3h"
	NetworkMemory NetworkKind = "memory"
	NetworkLib3h  NetworkKind = "lib3h"
	NetworkSim1h  NetworkKind = "sim1h"
	NetworkSim2h  NetworkKind = "sim2h"
)

// InterfaceDriver selects the transport an interface dispatcher listens
// on (§6).
type InterfaceDriver string

const (
	DriverWebsocket InterfaceDriver = "websocket"
	DriverHTTP      InterfaceDriver = "http"
)

// Agent is a configured key-identified participant.
type Agent struct {
	ID         string `toml:"id"`
	Name       string `toml:"name"`
	PublicKey  string `toml:"public_address"`
	KeystoreFile string `toml:"keystore_file"`
}

// DNA is a configured application package reference.
type DNA struct {
	ID              string   `toml:"id"`
	File            string   `toml:"file"`
	Hash            string   `toml:"hash"`
	UUID            string   `toml:"uuid,omitempty"`
	Properties      string   `toml:"properties,omitempty"`
	RequiredBridges []string `toml:"required_bridges,omitempty"`
}

// InstanceStorage is an instance's `[instances.storage]` sub-table (§6).
type InstanceStorage struct {
	Kind StorageKind `toml:"kind"`
	Path string      `toml:"path,omitempty"`
}

// Instance is a configured `(agent, DNA)` pair (§6).
type Instance struct {
	ID      string          `toml:"id"`
	DNA     string          `toml:"dna"`
	Agent   string          `toml:"agent"`
	Storage InstanceStorage `toml:"storage"`
}

// InterfaceInstanceRef names one instance bound to an interface, under
// its public-facing id (§6 `interfaces[i].instances[k].id`).
type InterfaceInstanceRef struct {
	ID string `toml:"id"`
}

// InterfaceDriverConfig is an interface's `[interfaces.driver]` sub-table.
type InterfaceDriverConfig struct {
	Kind InterfaceDriver `toml:"type"`
	Port int             `toml:"port"`
}

// Interface is a configured JSON-RPC interface dispatcher (§6).
type Interface struct {
	ID        string                 `toml:"id"`
	Admin     bool                   `toml:"admin"`
	Driver    InterfaceDriverConfig  `toml:"driver"`
	Instances []InterfaceInstanceRef `toml:"instances"`
}

// Bridge is a configured named call channel between two instances (§6).
type Bridge struct {
	CallerID string `toml:"caller_id"`
	CalleeID string `toml:"callee_id"`
	Handle   string `toml:"handle"`
}

// UIBundle names a static UI bundle directory (out of scope beyond the
// schema slot itself — §1 "static UI hosting" is an external collaborator).
type UIBundle struct {
	ID       string `toml:"id"`
	RootDir  string `toml:"root_dir"`
}

// UIInterface binds a UIBundle to a port and, optionally, a DNA interface
// it proxies `call` requests to.
type UIInterface struct {
	ID            string `toml:"id"`
	Bundle        string `toml:"bundle"`
	Port          int    `toml:"port"`
	DNAInterface  string `toml:"dna_interface,omitempty"`
}

// LoggerConfig configures the ambient logging stack (SPEC_FULL.md AMBIENT
// STACK); the sinks themselves are out of scope (§1), only the level/
// format selection lives in the config schema.
type LoggerConfig struct {
	Level string `toml:"level,omitempty"`
}

// NetworkConfig selects the P2P transport (§6).
type NetworkConfig struct {
	Type NetworkKind `toml:"type"`
	URL  string      `toml:"url,omitempty"`
}

// DPKIConfig optionally names a DPKI/key-management DNA to boot first
// (§4.8 boot step 3).
type DPKIConfig struct {
	InstanceID string `toml:"instance_id"`
	InitParams string `toml:"init_params,omitempty"`
}

// PassphraseServiceConfig selects how the keystore passphrase is
// obtained; the service implementation itself is out of scope (§1).
type PassphraseServiceConfig struct {
	Kind string `toml:"type"`
}

// SignalsConfig gates which Signal kinds the conductor's multiplexer
// forwards to admin interfaces (§4.8 "Signal multiplexer").
type SignalsConfig struct {
	Trace       bool `toml:"trace"`
	Consistency bool `toml:"consistency"`
}

// Config is the full conductor configuration file (§6).
type Config struct {
	Agents             []Agent       `toml:"agents"`
	DNAs               []DNA         `toml:"dnas"`
	Instances          []Instance    `toml:"instances"`
	Interfaces         []Interface   `toml:"interfaces"`
	Bridges            []Bridge      `toml:"bridges"`
	UIBundles          []UIBundle    `toml:"ui_bundles,omitempty"`
	UIInterfaces       []UIInterface `toml:"ui_interfaces,omitempty"`
	Logger             LoggerConfig  `toml:"logger,omitempty"`
	Network            NetworkConfig `toml:"network"`
	DPKI               *DPKIConfig   `toml:"dpki,omitempty"`
	PassphraseService  PassphraseServiceConfig `toml:"passphrase_service,omitempty"`
	Signals            SignalsConfig `toml:"signals,omitempty"`
	PersistenceDir     string        `toml:"persistence_dir"`
}

// Load parses the TOML file at path into a Config.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chainconfig: reading %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes raw TOML bytes into a Config.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(string(b), &cfg); err != nil {
		return nil, fmt.Errorf("chainconfig: decoding toml: %w", err)
	}
	return &cfg, nil
}

// Save serializes cfg as TOML and atomically replaces the file at path
// (write to a temp file, then rename), matching §4.8's "admin operations
// are transactional... and only then atomically swaps it in and persists
// to disk."
func Save(cfg *Config, path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("chainconfig: creating temp file: %w", err)
	}
	enc := toml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("chainconfig: encoding: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("chainconfig: closing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("chainconfig: renaming into place: %w", err)
	}
	return nil
}

// Clone returns a deep-enough copy of cfg for the conductor's
// clone-mutate-validate-swap transaction pattern (§4.8): every slice is
// reallocated so mutating the clone never touches cfg's own backing
// arrays.
func (c *Config) Clone() *Config {
	out := *c
	out.Agents = append([]Agent(nil), c.Agents...)
	out.DNAs = append([]DNA(nil), c.DNAs...)
	out.Instances = append([]Instance(nil), c.Instances...)
	out.Interfaces = make([]Interface, len(c.Interfaces))
	for i, iface := range c.Interfaces {
		iface.Instances = append([]InterfaceInstanceRef(nil), iface.Instances...)
		out.Interfaces[i] = iface
	}
	out.Bridges = append([]Bridge(nil), c.Bridges...)
	out.UIBundles = append([]UIBundle(nil), c.UIBundles...)
	out.UIInterfaces = append([]UIInterface(nil), c.UIInterfaces...)
	if c.DPKI != nil {
		dpki := *c.DPKI
		out.DPKI = &dpki
	}
	return &out
}

// FindInstance returns the Instance configured under id.
func (c *Config) FindInstance(id string) (Instance, bool) {
	for _, i := range c.Instances {
		if i.ID == id {
			return i, true
		}
	}
	return Instance{}, false
}

// FindDNA returns the DNA configured under id.
func (c *Config) FindDNA(id string) (DNA, bool) {
	for _, d := range c.DNAs {
		if d.ID == id {
			return d, true
		}
	}
	return DNA{}, false
}

// FindAgent returns the Agent configured under id.
func (c *Config) FindAgent(id string) (Agent, bool) {
	for _, a := range c.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return Agent{}, false
}

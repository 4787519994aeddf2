// Package conductor implements C10 (§4.8): the process that reads a
// chainconfig.Config, boots every configured instance in bridge-dependency
// order, wires bridge calls between co-hosted instances, and fans out
// the instance-scoped Signal stream to whichever admin interfaces asked
// for it. This is modeled on the teacher's node process
// (node/node.go)'s "construct every subsystem, start them in dependency
// order, hold the handles needed to shut them down again" shape, applied
// to instances instead of consensus engines/VMs.
package conductor

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/log"

	"github.com/lux-nexus/switchboard/internal/action"
	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/chainconfig"
	"github.com/lux-nexus/switchboard/internal/errs"
	"github.com/lux-nexus/switchboard/internal/instance"
	"github.com/lux-nexus/switchboard/internal/logging"
	"github.com/lux-nexus/switchboard/internal/metrics"
	"github.com/lux-nexus/switchboard/internal/model"
)

// Bundle is what an InstanceFactory hands back for one configured
// instance: the running Instance itself plus the provenance needed for
// the boot-time DNA hash cross-check (§4.8 "three-way consistency
// check"). Loading DNA bytes/WASM and constructing the zome callback set
// is the factory's job — out of this module's scope (§1) beyond this
// handoff shape.
type Bundle struct {
	Instance *instance.Instance
	// FileHash is the hash of the DNA file bytes the factory loaded from
	// disk, independent of anything either the config or the instance's
	// own chain claims.
	FileHash address.Address
	// GenesisDNA is the KindDNA entry the instance's own chain commits as
	// its second entry (§4.1), carrying the DNA's own idea of its code
	// hash.
	GenesisDNA model.Entry
}

// InstanceFactory builds the running Instance (and its provenance
// bundle) for one configured `(agent, DNA)` pair.
type InstanceFactory func(ctx context.Context, inst chainconfig.Instance, dna chainconfig.DNA, agent chainconfig.Agent) (Bundle, error)

// Conductor hosts any number of instances side by side, per a
// chainconfig.Config, and mediates bridge calls and signals between them
// (§4.8, C10).
type Conductor struct {
	mu      sync.RWMutex
	cfg     *chainconfig.Config
	cfgPath string
	dnaDir  string

	factory InstanceFactory
	log     log.Logger
	met     *metrics.Metrics
	bus     *action.SignalBus

	instances map[string]*instance.Instance
	cancel    map[string]context.CancelFunc
	bootOrder []string
}

// New returns a Conductor over cfg, not yet booted.
func New(cfg *chainconfig.Config, factory InstanceFactory, logger log.Logger, met *metrics.Metrics) *Conductor {
	if logger == nil {
		logger = logging.New()
	}
	return &Conductor{
		cfg:       cfg,
		factory:   factory,
		log:       logger,
		met:       met,
		bus:       action.NewSignalBus(),
		instances: make(map[string]*instance.Instance),
		cancel:    make(map[string]context.CancelFunc),
	}
}

// Signals exposes the conductor's signal bus for admin interfaces to
// subscribe to (§4.8 "Signal multiplexer", internal/rpcserver).
func (c *Conductor) Signals() *action.SignalBus { return c.bus }

// Instance returns the running Instance configured under id.
func (c *Conductor) Instance(id string) (*instance.Instance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.instances[id]
	return inst, ok
}

// InstanceIDs returns every currently-active instance id, in boot order.
func (c *Conductor) InstanceIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.bootOrder))
	copy(out, c.bootOrder)
	return out
}

// InstanceHealth reports one configured instance's up/down state, keyed
// by whether it currently has a running action loop (present in
// c.instances) rather than merely configured (present in c.cfg).
type InstanceHealth struct {
	ID string
	Up bool
}

// Health renders the SPEC_FULL.md `admin/health` report (supplemented
// per original_source/'s `Health(ctx) (interface{}, error)` pattern on
// the teacher's router/engine interfaces): every configured instance's
// up/down state plus the configured network transport this conductor's
// instances rely on to reach the switchboard.
func (c *Conductor) Health() (instances []InstanceHealth, networkType string, networkURL string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, configured := range c.cfg.Instances {
		_, up := c.instances[configured.ID]
		instances = append(instances, InstanceHealth{ID: configured.ID, Up: up})
	}
	return instances, string(c.cfg.Network.Type), c.cfg.Network.URL
}

// Boot runs the §4.8 boot sequence:
//  1. validate the config (chainconfig.CheckConsistency)
//  2. compute bridge boot order (callees before callers)
//  3. boot the DPKI instance first, if configured, and run its Init
//  4. boot every remaining instance in order, checking its DNA hash
//     three ways (config, loaded file, genesis entry) before admitting it
//  5. start each instance's action+holding loop goroutines
//
// Boot returns the first error encountered and leaves every instance
// booted up to that point running; callers that want all-or-nothing
// semantics should call Shutdown on a non-nil error.
func (c *Conductor) Boot(ctx context.Context) error {
	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()

	if err := chainconfig.CheckConsistency(cfg); err != nil {
		return fmt.Errorf("conductor: config consistency: %w", err)
	}

	order, err := chainconfig.BridgeBootOrder(cfg)
	if err != nil {
		return fmt.Errorf("conductor: bridge boot order: %w", err)
	}

	if cfg.DPKI != nil {
		if err := c.bootOne(ctx, cfg.DPKI.InstanceID); err != nil {
			return fmt.Errorf("conductor: booting dpki instance %s: %w", cfg.DPKI.InstanceID, err)
		}
		order = moveToFront(order, cfg.DPKI.InstanceID)
	}

	for _, id := range order {
		if id == "" {
			continue
		}
		if _, already := c.Instance(id); already {
			continue
		}
		if err := c.bootOne(ctx, id); err != nil {
			return fmt.Errorf("conductor: booting instance %s: %w", id, err)
		}
	}

	c.mu.Lock()
	c.bootOrder = order
	c.mu.Unlock()
	return nil
}

func (c *Conductor) bootOne(ctx context.Context, id string) error {
	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()

	instCfg, ok := cfg.FindInstance(id)
	if !ok {
		return errs.ErrNoSuchInstance
	}
	dnaCfg, ok := cfg.FindDNA(instCfg.DNA)
	if !ok {
		return fmt.Errorf("conductor: instance %s: %w", id, errs.ErrNoSuchInstance)
	}
	agentCfg, ok := cfg.FindAgent(instCfg.Agent)
	if !ok {
		return fmt.Errorf("conductor: instance %s: %w", id, errs.ErrNoSuchInstance)
	}

	bundle, err := c.factory(ctx, instCfg, dnaCfg, agentCfg)
	if err != nil {
		return fmt.Errorf("conductor: instantiating %s: %w", id, err)
	}
	if err := checkDNAHash(dnaCfg, bundle); err != nil {
		return err
	}

	instCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if _, already := c.instances[id]; already {
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("conductor: instance %s: %w", id, errs.ErrInstanceAlreadyActive)
	}
	c.instances[id] = bundle.Instance
	c.cancel[id] = cancel
	c.mu.Unlock()

	go func() {
		if err := bundle.Instance.Start(instCtx); err != nil {
			c.log.Error("instance exited with error", log.String("instance", id), log.Err(err))
		}
	}()
	return nil
}

// checkDNAHash implements §4.8's three-way DNA consistency check: the
// config's declared hash, the hash of the file the factory actually
// loaded, and the hash the instance's own genesis DNA entry claims must
// all agree.
func checkDNAHash(dna chainconfig.DNA, bundle Bundle) error {
	if dna.Hash == "" {
		return nil // no hash pinned in config; nothing to cross-check
	}
	expected, err := address.Parse(dna.Hash)
	if err != nil {
		return fmt.Errorf("conductor: parsing configured dna hash: %w", err)
	}
	if expected != bundle.FileHash {
		return &errs.DnaHashMismatch{Expected: expected.String(), Actual: bundle.FileHash.String()}
	}
	if bundle.GenesisDNA.Kind == model.KindDNA && bundle.GenesisDNA.DNA != nil {
		if bundle.GenesisDNA.DNA.CodeHash != expected {
			return &errs.DnaHashMismatch{Expected: expected.String(), Actual: bundle.GenesisDNA.DNA.CodeHash.String()}
		}
	}
	return nil
}

// Shutdown cancels every running instance and waits for Boot's state to
// be cleared; it does not wait for each instance's goroutine to actually
// exit (callers pass a ctx with their own deadline to Start/Boot for
// that).
func (c *Conductor) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cancel := range c.cancel {
		cancel()
		delete(c.cancel, id)
	}
	c.instances = make(map[string]*instance.Instance)
	c.bootOrder = nil
}

func moveToFront(order []string, id string) []string {
	out := make([]string, 0, len(order))
	out = append(out, id)
	for _, o := range order {
		if o != id {
			out = append(out, o)
		}
	}
	return out
}

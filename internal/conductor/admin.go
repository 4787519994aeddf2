package conductor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/chainconfig"
	"github.com/lux-nexus/switchboard/internal/errs"
)

// configPath, when set via SetConfigPath, is where AdminMutate persists
// the config after every successful transaction (§4.8 "transactional...
// only then atomically swaps it in and persists to disk"). An empty path
// means mutations apply in memory only (used by tests).
func (c *Conductor) SetConfigPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfgPath = path
}

// SetDNADir sets the managed directory admin/dna/install_from_file
// copies DNA files into when called with copy=true.
func (c *Conductor) SetDNADir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dnaDir = dir
}

// AdminMutate runs the conductor's clone-mutate-validate-swap transaction
// pattern (§4.8): mutate receives a deep-enough clone of the live config,
// and its changes are only committed (swapped in, and persisted if a
// config path is set) if the mutated clone passes CheckConsistency.
// Nothing about the live config is ever visible half-mutated to a
// concurrent reader.
func (c *Conductor) AdminMutate(mutate func(*chainconfig.Config) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	clone := c.cfg.Clone()
	if err := mutate(clone); err != nil {
		return err
	}
	if err := chainconfig.CheckConsistency(clone); err != nil {
		return fmt.Errorf("conductor: admin mutation rejected: %w", err)
	}
	if c.cfgPath != "" {
		if err := chainconfig.Save(clone, c.cfgPath); err != nil {
			return fmt.Errorf("conductor: persisting config: %w", err)
		}
	}
	c.cfg = clone
	return nil
}

// AddAgent adds a new agent to the config (§6 `admin/agent/add`).
func (c *Conductor) AddAgent(a chainconfig.Agent) error {
	return c.AdminMutate(func(cfg *chainconfig.Config) error {
		cfg.Agents = append(cfg.Agents, a)
		return nil
	})
}

// RemoveAgent removes an agent and cascades the removal to every
// instance it owns (§6 "Removing an agent cascades to its instances"),
// which in turn cascades to any bridge or interface reference naming one
// of those instances.
func (c *Conductor) RemoveAgent(id string) error {
	var cascaded []string
	err := c.AdminMutate(func(cfg *chainconfig.Config) error {
		cfg.Agents = filterOut(cfg.Agents, func(a chainconfig.Agent) bool { return a.ID == id })
		for _, inst := range cfg.Instances {
			if inst.Agent == id {
				cascaded = append(cascaded, inst.ID)
			}
		}
		for _, instID := range cascaded {
			cascadeRemoveInstance(cfg, instID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.evictInstances(cascaded)
	return nil
}

// AddDNA adds a new DNA reference to the config (§6 `admin/dna/list`'s
// counterpart add path, used by tests and by InstallDNA's non-file form).
func (c *Conductor) AddDNA(d chainconfig.DNA) error {
	return c.AdminMutate(func(cfg *chainconfig.Config) error {
		cfg.DNAs = append(cfg.DNAs, d)
		return nil
	})
}

// InstallDNA implements `admin/dna/install_from_file`: it hashes the DNA
// bytes read from source, optionally copies them into the conductor's
// managed DNA directory, cross-checks expectedHash if the caller pinned
// one, and rejects properties without copy=true (§6 table).
func (c *Conductor) InstallDNA(d chainconfig.DNA, source []byte, copyToManagedDir bool, expectedHash string) error {
	if d.Properties != "" && !copyToManagedDir {
		return fmt.Errorf("conductor: install_from_file: properties requires copy=true")
	}
	actual := address.FromBytes(source)
	if expectedHash != "" {
		expected, err := address.Parse(expectedHash)
		if err != nil {
			return fmt.Errorf("conductor: install_from_file: parsing expected_hash: %w", err)
		}
		if expected != actual {
			return &errs.DnaHashMismatch{Expected: expected.String(), Actual: actual.String()}
		}
	}
	d.Hash = actual.String()

	if copyToManagedDir {
		c.mu.RLock()
		dir := c.dnaDir
		c.mu.RUnlock()
		if dir == "" {
			return fmt.Errorf("conductor: install_from_file: no managed dna directory configured")
		}
		dest := filepath.Join(dir, d.ID+".dna")
		if err := os.WriteFile(dest, source, 0o644); err != nil {
			return fmt.Errorf("conductor: install_from_file: copying into managed dir: %w", err)
		}
		d.File = dest
	}

	return c.AddDNA(d)
}

// UninstallDNA removes a DNA and cascade-removes every instance built
// against it, along with any bridge or interface reference to those
// instances (§6 `admin/dna/uninstall`).
func (c *Conductor) UninstallDNA(id string) error {
	var cascaded []string
	err := c.AdminMutate(func(cfg *chainconfig.Config) error {
		cfg.DNAs = filterOut(cfg.DNAs, func(d chainconfig.DNA) bool { return d.ID == id })
		for _, inst := range cfg.Instances {
			if inst.DNA == id {
				cascaded = append(cascaded, inst.ID)
			}
		}
		for _, instID := range cascaded {
			cascadeRemoveInstance(cfg, instID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.evictInstances(cascaded)
	return nil
}

// ListDNAs returns `{id, hash}` for every installed DNA (§6
// `admin/dna/list`).
func (c *Conductor) ListDNAs() []chainconfig.DNA {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]chainconfig.DNA, len(c.cfg.DNAs))
	copy(out, c.cfg.DNAs)
	return out
}

// AddInstance adds a new instance to the config (§6
// `admin/instance/add`). It does not boot the instance; call StartInstance
// separately once the mutation is committed.
func (c *Conductor) AddInstance(inst chainconfig.Instance) error {
	return c.AdminMutate(func(cfg *chainconfig.Config) error {
		cfg.Instances = append(cfg.Instances, inst)
		return nil
	})
}

// RemoveInstance removes instance id from the config and, if it is
// currently running, stops and evicts it. Removal is rejected (by
// CheckConsistency) if any remaining bridge or interface still
// references it (§6 `admin/instance/remove`). It leaves on-disk storage
// in place; RemoveInstanceClean also deletes the storage directory.
func (c *Conductor) RemoveInstance(id string) error {
	return c.removeInstance(id, false, "")
}

// RemoveInstanceClean is RemoveInstance with clean=true: it also deletes
// storageDir from disk once the config mutation commits.
func (c *Conductor) RemoveInstanceClean(id, storageDir string) error {
	return c.removeInstance(id, true, storageDir)
}

func (c *Conductor) removeInstance(id string, clean bool, storageDir string) error {
	err := c.AdminMutate(func(cfg *chainconfig.Config) error {
		cfg.Instances = filterOut(cfg.Instances, func(i chainconfig.Instance) bool { return i.ID == id })
		return nil
	})
	if err != nil {
		return err
	}
	c.evictInstances([]string{id})
	if clean && storageDir != "" {
		if err := os.RemoveAll(storageDir); err != nil {
			return fmt.Errorf("conductor: instance/remove: cleaning storage: %w", err)
		}
	}
	return nil
}

// StartInstance boots a configured, not-currently-running instance (§6
// `admin/instance/start`). It returns errs.ErrInstanceAlreadyActive if
// the instance is already running (idempotent-on-failure).
func (c *Conductor) StartInstance(ctx context.Context, id string) error {
	if _, already := c.Instance(id); already {
		return errs.ErrInstanceAlreadyActive
	}
	if err := c.bootOne(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	c.bootOrder = append(c.bootOrder, id)
	c.mu.Unlock()
	return nil
}

// StopInstance cancels and evicts a running instance (§6
// `admin/instance/stop`). It returns errs.ErrInstanceNotActiveYet if the
// instance is not currently running (idempotent-on-failure).
func (c *Conductor) StopInstance(id string) error {
	c.mu.Lock()
	cancel, ok := c.cancel[id]
	c.mu.Unlock()
	if !ok {
		return errs.ErrInstanceNotActiveYet
	}
	cancel()
	c.evictInstances([]string{id})
	return nil
}

// AddInterface adds a new interface dispatcher to the config (§6
// `admin/interface/add`).
func (c *Conductor) AddInterface(iface chainconfig.Interface) error {
	return c.AdminMutate(func(cfg *chainconfig.Config) error {
		cfg.Interfaces = append(cfg.Interfaces, iface)
		return nil
	})
}

// RemoveInterface removes an interface dispatcher from the config (§6
// `admin/interface/remove`).
func (c *Conductor) RemoveInterface(id string) error {
	return c.AdminMutate(func(cfg *chainconfig.Config) error {
		cfg.Interfaces = filterOut(cfg.Interfaces, func(i chainconfig.Interface) bool { return i.ID == id })
		return nil
	})
}

// AddInstanceToInterface binds instanceID to interfaceID (§6
// `admin/interface/add_instance`). Restarting the interface dispatcher
// itself is internal/rpcserver's job once this mutation commits.
func (c *Conductor) AddInstanceToInterface(interfaceID, instanceID string) error {
	return c.AdminMutate(func(cfg *chainconfig.Config) error {
		for i, iface := range cfg.Interfaces {
			if iface.ID != interfaceID {
				continue
			}
			cfg.Interfaces[i].Instances = append(iface.Instances, chainconfig.InterfaceInstanceRef{ID: instanceID})
			return nil
		}
		return fmt.Errorf("conductor: no such interface %q", interfaceID)
	})
}

// RemoveInstanceFromInterface unbinds instanceID from interfaceID (§6
// `admin/interface/remove_instance`).
func (c *Conductor) RemoveInstanceFromInterface(interfaceID, instanceID string) error {
	return c.AdminMutate(func(cfg *chainconfig.Config) error {
		for i, iface := range cfg.Interfaces {
			if iface.ID != interfaceID {
				continue
			}
			cfg.Interfaces[i].Instances = filterOut(iface.Instances, func(r chainconfig.InterfaceInstanceRef) bool {
				return r.ID == instanceID
			})
			return nil
		}
		return fmt.Errorf("conductor: no such interface %q", interfaceID)
	})
}

// AddBridge declares a new bridge between two configured instances (§6
// `admin/bridge/add`). The mutation's own CheckConsistency pass rejects
// it if it would introduce a cycle (rule 4) or if either endpoint's DNA
// declares a required bridge this one doesn't satisfy (rule 5).
func (c *Conductor) AddBridge(b chainconfig.Bridge) error {
	return c.AdminMutate(func(cfg *chainconfig.Config) error {
		cfg.Bridges = append(cfg.Bridges, b)
		return nil
	})
}

// RemoveBridge removes a declared bridge (§6 `admin/bridge/remove`).
// Rejected by CheckConsistency's rule 5 if the caller's DNA still
// requires it.
func (c *Conductor) RemoveBridge(callerID, handle string) error {
	return c.AdminMutate(func(cfg *chainconfig.Config) error {
		cfg.Bridges = filterOut(cfg.Bridges, func(b chainconfig.Bridge) bool {
			return b.CallerID == callerID && b.Handle == handle
		})
		return nil
	})
}

// cascadeRemoveInstance removes instance id from cfg along with every
// bridge and interface reference naming it, so a cascading removal (DNA
// uninstall, agent remove) never leaves a dangling reference for
// CheckConsistency to reject the whole transaction over.
func cascadeRemoveInstance(cfg *chainconfig.Config, id string) {
	cfg.Instances = filterOut(cfg.Instances, func(i chainconfig.Instance) bool { return i.ID == id })
	cfg.Bridges = filterOut(cfg.Bridges, func(b chainconfig.Bridge) bool {
		return b.CallerID == id || b.CalleeID == id
	})
	for i, iface := range cfg.Interfaces {
		cfg.Interfaces[i].Instances = filterOut(iface.Instances, func(r chainconfig.InterfaceInstanceRef) bool {
			return r.ID == id
		})
	}
}

// evictInstances cancels and removes every id from the conductor's live
// instance/boot-order bookkeeping, independent of the config mutation
// that authorized the eviction.
func (c *Conductor) evictInstances(ids []string) {
	if len(ids) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if cancel, ok := c.cancel[id]; ok {
			cancel()
			delete(c.cancel, id)
		}
		delete(c.instances, id)
		for i, existing := range c.bootOrder {
			if existing == id {
				c.bootOrder = append(c.bootOrder[:i], c.bootOrder[i+1:]...)
				break
			}
		}
	}
}

// filterOut returns a new slice with every element matching drop removed,
// preserving order and never aliasing the input's backing array.
func filterOut[T any](in []T, drop func(T) bool) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if !drop(v) {
			out = append(out, v)
		}
	}
	return out
}

package chainconfig

import (
	"fmt"

	"github.com/lux-nexus/switchboard/internal/errs"
)

// CheckConsistency runs the five rules of §6 "Consistency rules" against
// cfg, returning the first violation found: a bridge-graph cycle wraps
// errs.ErrBridgeCycle, a missing required bridge (rule 5) is an
// *errs.RequiredBridgeMissing, and every other violation is an
// *errs.ConfigError.
func CheckConsistency(cfg *Config) error {
	dnaIDs := make(map[string]bool, len(cfg.DNAs))
	for _, d := range cfg.DNAs {
		dnaIDs[d.ID] = true
	}
	agentIDs := make(map[string]bool, len(cfg.Agents))
	for _, a := range cfg.Agents {
		agentIDs[a.ID] = true
	}
	instanceIDs := make(map[string]bool, len(cfg.Instances))
	for _, i := range cfg.Instances {
		instanceIDs[i.ID] = true
	}

	// Rule 1: every instance's dna references an existing DNA.
	for _, i := range cfg.Instances {
		if !dnaIDs[i.DNA] {
			return &errs.ConfigError{Rule: "rule1", Msg: fmt.Sprintf("instance %q references unknown dna %q", i.ID, i.DNA)}
		}
	}

	// Rule 2: every instance's agent references an existing agent.
	for _, i := range cfg.Instances {
		if !agentIDs[i.Agent] {
			return &errs.ConfigError{Rule: "rule2", Msg: fmt.Sprintf("instance %q references unknown agent %q", i.ID, i.Agent)}
		}
	}

	// Rule 3: every interface's bound instance references an existing instance.
	for _, iface := range cfg.Interfaces {
		for _, ref := range iface.Instances {
			if !instanceIDs[ref.ID] {
				return &errs.ConfigError{Rule: "rule3", Msg: fmt.Sprintf("interface %q references unknown instance %q", iface.ID, ref.ID)}
			}
		}
	}

	// Rule 4: every bridge's caller/callee reference existing instances;
	// no duplicate (caller, callee) pairs; no cycles in the bridge graph.
	seenPairs := make(map[[2]string]bool, len(cfg.Bridges))
	for _, b := range cfg.Bridges {
		if !instanceIDs[b.CallerID] {
			return &errs.ConfigError{Rule: "rule4", Msg: fmt.Sprintf("bridge %q references unknown caller %q", b.Handle, b.CallerID)}
		}
		if !instanceIDs[b.CalleeID] {
			return &errs.ConfigError{Rule: "rule4", Msg: fmt.Sprintf("bridge %q references unknown callee %q", b.Handle, b.CalleeID)}
		}
		pair := [2]string{b.CallerID, b.CalleeID}
		if seenPairs[pair] {
			return &errs.ConfigError{Rule: "rule4", Msg: fmt.Sprintf("duplicate bridge (%s, %s)", b.CallerID, b.CalleeID)}
		}
		seenPairs[pair] = true
	}
	if _, err := BridgeBootOrder(cfg); err != nil {
		return fmt.Errorf("rule4: %w", err)
	}

	// Rule 5: every instance whose DNA declares a required bridge has a
	// matching [[bridges]] entry with this instance as caller.
	callerHandles := make(map[string]map[string]bool, len(cfg.Instances)) // instance -> handle -> present
	for _, b := range cfg.Bridges {
		m, ok := callerHandles[b.CallerID]
		if !ok {
			m = make(map[string]bool)
			callerHandles[b.CallerID] = m
		}
		m[b.Handle] = true
	}
	for _, i := range cfg.Instances {
		dna, ok := cfg.FindDNA(i.DNA)
		if !ok {
			continue // already reported by rule 1
		}
		for _, required := range dna.RequiredBridges {
			if !callerHandles[i.ID][required] {
				return &errs.RequiredBridgeMissing{Handle: required}
			}
		}
	}

	return nil
}

// BridgeBootOrder returns instance IDs sorted so that, for every bridge
// (caller, callee), callee precedes caller (§4.8 boot step 4, §8
// invariant 8). Only instances that appear in cfg.Instances are ordered;
// instances never referenced by a bridge keep their configured order
// relative to one another. Returns errs.ErrBridgeCycle if the bridge
// graph has a cycle.
func BridgeBootOrder(cfg *Config) ([]string, error) {
	// edges[callee] = []caller : callee must start before every caller.
	edges := make(map[string][]string, len(cfg.Bridges))
	inDegree := make(map[string]int, len(cfg.Instances))
	for _, i := range cfg.Instances {
		inDegree[i.ID] = 0
	}
	for _, b := range cfg.Bridges {
		edges[b.CalleeID] = append(edges[b.CalleeID], b.CallerID)
		inDegree[b.CallerID]++
	}

	var queue []string
	for _, i := range cfg.Instances {
		if inDegree[i.ID] == 0 {
			queue = append(queue, i.ID)
		}
	}

	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dependent := range edges[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(cfg.Instances) {
		return nil, errs.ErrBridgeCycle
	}
	return order, nil
}

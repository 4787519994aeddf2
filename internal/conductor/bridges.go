package conductor

import (
	"context"
	"fmt"
	"time"

	"github.com/lux-nexus/switchboard/internal/chainconfig"
	"github.com/lux-nexus/switchboard/internal/errs"
)

// bridgeCallTimeout bounds a synchronous bridge call (§4.8 "a bridge call
// blocks the caller for at most 60s before failing with a Timeout").
const bridgeCallTimeout = 60 * time.Second

// BridgeCall dispatches a synchronous call from callerID's instance to
// whichever instance its config names under handle, returning the
// callee's reply bytes (§4.8 "Bridge calls"). It is the in-process
// analogue of a remote procedure call: since both instances are hosted
// by this same conductor, no network hop is needed — only the config
// lookup, a bounded wait, and latency accounting.
func (c *Conductor) BridgeCall(ctx context.Context, callerID, handle string, payload []byte) ([]byte, error) {
	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()

	var callee chainconfig.Bridge
	found := false
	for _, b := range cfg.Bridges {
		if b.CallerID == callerID && b.Handle == handle {
			callee = b
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("conductor: no bridge %q declared for instance %s", handle, callerID)
	}

	callerInst, ok := c.Instance(callerID)
	if !ok {
		return nil, fmt.Errorf("conductor: bridge caller %s: %w", callerID, errs.ErrNoSuchInstance)
	}
	calleeInst, ok := c.Instance(callee.CalleeID)
	if !ok {
		return nil, fmt.Errorf("conductor: bridge callee %s: %w", callee.CalleeID, errs.ErrInstanceNotActiveYet)
	}
	callerAgent, ok := callerInst.Agent()
	if !ok {
		return nil, fmt.Errorf("conductor: bridge caller %s: no unlocked signing key", callerID)
	}

	callCtx, cancel := context.WithTimeout(ctx, bridgeCallTimeout)
	defer cancel()

	start := time.Now()
	reply, err := calleeInst.Zome().Receive(callCtx, callerAgent, payload)
	elapsed := time.Since(start)

	if c.met != nil {
		c.met.BridgeCallLatency.WithLabelValues(callerID, callee.CalleeID).Observe(elapsed.Seconds())
	}
	if callCtx.Err() != nil {
		return nil, &errs.Timeout{Op: fmt.Sprintf("bridge call %s -> %s/%s", callerID, callee.CalleeID, handle)}
	}
	return reply, err
}

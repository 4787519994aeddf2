package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/luxfi/log"

	"github.com/lux-nexus/switchboard/internal/chainconfig"
	"github.com/lux-nexus/switchboard/internal/conductor"
	"github.com/lux-nexus/switchboard/internal/metrics"
)

// handler is one JSON-RPC method's implementation, bound to the
// Dispatcher it runs against via a Go method expression (see the
// publicMethods/adminMethods tables below).
type handler func(d *Dispatcher, ctx context.Context, params json.RawMessage) (interface{}, error)

var publicMethods = map[string]handler{
	"call":           (*Dispatcher).handleCall,
	"info/instances": (*Dispatcher).handleInfoInstances,
	"agent/sign":     (*Dispatcher).handleAgentSign,
}

// Dispatcher is the JSON-RPC method table bound to one configured
// interface (§4.10 "A JSON-RPC dispatcher bound per interface"). Admin
// methods are only reachable when the interface's Admin flag is set
// (§6 "on admin interfaces only").
type Dispatcher struct {
	cond  *conductor.Conductor
	iface chainconfig.Interface
	log   log.Logger
	met   *metrics.Metrics
}

// NewDispatcher returns a Dispatcher for iface, serving calls against
// cond's instances.
func NewDispatcher(cond *conductor.Conductor, iface chainconfig.Interface, logger log.Logger, met *metrics.Metrics) *Dispatcher {
	return &Dispatcher{cond: cond, iface: iface, log: logger, met: met}
}

// Handle decodes raw as one JSON-RPC request, dispatches it, and returns
// the marshaled response. A malformed request still gets a well-formed
// JSON-RPC error response rather than a transport-level failure, so
// callers (HTTP handler, websocket read loop) never need their own
// error-encoding path.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) []byte {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return encode(response{JSONRPC: jsonrpcVersion, Error: &rpcError{Code: codeParseError, Message: err.Error()}})
	}

	resp := response{JSONRPC: jsonrpcVersion, ID: req.ID}

	fn, ok := publicMethods[req.Method]
	if !ok {
		fn, ok = adminMethods[req.Method]
		if ok && !d.iface.Admin {
			resp.Error = errInvalidParams(fmt.Sprintf("method %q requires an admin interface", req.Method))
			return encode(resp)
		}
	}
	if !ok {
		resp.Error = &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}
		return encode(resp)
	}

	start := time.Now()
	result, err := fn(d, ctx, req.Params)
	outcome := "ok"
	if err != nil {
		resp.Error = asRPCError(err)
		outcome = "error"
	} else {
		resp.Result = result
	}
	if d.met != nil {
		d.met.RPCRequests.WithLabelValues(req.Method, outcome).Inc()
		d.met.RPCLatency.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	}
	return encode(resp)
}

func encode(resp response) []byte {
	b, err := json.Marshal(resp)
	if err != nil {
		// Marshaling our own response type cannot fail short of a bug;
		// fall back to a hand-built error payload rather than panicking.
		return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","error":{"code":%d,"message":%q}}`, codeInternal, err.Error()))
	}
	return b
}

// bind decodes params into v, wrapping any decode failure as a
// user-parameter error.
func bind(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return errInvalidParams("missing params")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return errInvalidParams(fmt.Sprintf("decoding params: %v", err))
	}
	return nil
}

// boundTo reports whether instanceID is one of the instances this
// dispatcher's interface declares (§6 `interfaces[i].instances`).
func (d *Dispatcher) boundTo(instanceID string) bool {
	for _, ref := range d.iface.Instances {
		if ref.ID == instanceID {
			return true
		}
	}
	return false
}

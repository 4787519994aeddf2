// Package logging adapts github.com/luxfi/log for this module's default
// logger needs: instances, the conductor, and the rpcserver all fall
// back to a no-op logger wherever SPEC_FULL.md's chainconfig leaves
// [logger] unset or a test constructs a collaborator without one.
package logging

import "github.com/luxfi/log"

// New returns the package's own no-op log.Logger (the same one the
// teacher's local log.NewNoOpLogger wrapper delegates to), rather than
// hand-rolling a second implementation of the interface.
func New() log.Logger { return log.NewNoOpLogger() }

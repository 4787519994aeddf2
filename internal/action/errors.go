package action

import "errors"

var errLoopStopped = errors.New("action: loop stopped")

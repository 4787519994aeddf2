package address

import "errors"

var errInvalidLength = errors.New("address: decoded value has wrong length")

package genealogy

import "errors"

// ErrChainRead wraps failures talking to the chain while validating a candidate.
var ErrChainRead = errors.New("genealogy: chain read failed")

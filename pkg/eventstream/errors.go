package eventstream

import "errors"

// ErrNilMutationEvent indicates a nil mutation event payload was provided to
// a publisher.
var ErrNilMutationEvent = errors.New("nil mutation event")

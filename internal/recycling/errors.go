package recycling

import "errors"

// ErrInvalidChainRange reports chain bounds that do not describe a
// first..last range reachable via Next.
var ErrInvalidChainRange = errors.New("invalid chain range")

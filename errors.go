package cruisesim

import "errors"

// ErrInvalidParameter is wrapped by every configuration failure. It is
// reported before the simulation loop runs and is never corrected silently.
var ErrInvalidParameter = errors.New("invalid parameter")

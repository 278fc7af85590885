package apply

import "time"

// clockNow is overridden in tests that need deterministic identity
// registration timestamps.
var clockNow = time.Now

package model

import "time"

// clock is overridden in tests that need deterministic Recorded timestamps.
var clock = time.Now

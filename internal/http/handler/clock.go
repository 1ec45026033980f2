package handler

import "time"

// timeNow is swapped in tests that pin date-token resolution.
var timeNow = time.Now

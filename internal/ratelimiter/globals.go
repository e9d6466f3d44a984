package ratelimiter

import "time"

const defaultHostInterval = 500 * time.Millisecond

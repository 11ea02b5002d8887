// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package transport

import (
	"time"
)

// pollInterval bounds a single blocking read so cancellation is noticed.
const pollInterval = 250 * time.Millisecond

func getReadTimeout(deadline time.Time) time.Duration {
	const minTimeout = 10 * time.Millisecond
	if deadline.IsZero() {
		return pollInterval
	}

	timeout := time.Until(deadline)
	if timeout < minTimeout {
		return minTimeout
	}
	return min(timeout, pollInterval)
}

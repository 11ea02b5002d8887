// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package capture

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"

	"github.com/tracebox/tracebox/log"
)

const uploadMaxTries = 5

// Upload POSTs the capture file at path to url, retrying server errors with
// exponential backoff.
func Upload(ctx context.Context, client *http.Client, url, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read capture file %s", path)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	expBackoff.MaxInterval = 5 * time.Second

	operation := func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return 0, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/vnd.tcpdump.pcap")
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return resp.StatusCode, fmt.Errorf("server error %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return resp.StatusCode, backoff.Permanent(fmt.Errorf("upload rejected with status %d", resp.StatusCode))
		}
		return resp.StatusCode, nil
	}
	status, err := backoff.Retry(ctx, operation, backoff.WithBackOff(expBackoff), backoff.WithMaxTries(uploadMaxTries))
	if err != nil {
		return errors.Wrapf(err, "failed to upload %s to %s", path, url)
	}
	log.Debugf("uploaded %s (%d bytes) to %s: %d", path, len(data), url, status)
	return nil
}

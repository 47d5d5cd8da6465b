package client

import (
	"context"
	"fmt"
	"time"
)

const (
	// ReadyCheckInterval is the interval between readiness checks.
	ReadyCheckInterval = 100 * time.Millisecond
	// ReadyCheckTimeout is the timeout for a single readiness check.
	ReadyCheckTimeout = 2 * time.Second
)

// WaitForReady waits until the server answers get_server_status.
func WaitForReady(ctx context.Context, addr string) error {
	ticker := time.NewTicker(ReadyCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if CheckReady(addr) == nil {
				return nil
			}
		}
	}
}

// CheckReady checks once whether the server answers.
func CheckReady(addr string) error {
	resp, err := New(addr).WithTimeout(ReadyCheckTimeout).Status()
	if err != nil {
		return fmt.Errorf("readiness check: %w", err)
	}
	if !resp.OK() {
		return fmt.Errorf("readiness check: %s", resp.Message)
	}
	return nil
}

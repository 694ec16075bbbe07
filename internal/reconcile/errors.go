package reconcile

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrNetworkUnavailable is soft: the cache stays as-is and a later
	// reconciliation will retry. Never surfaced to feature gating.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrBillingProvider is loud: surfaced to the purchase/restore caller
	// with the provider-supplied message wrapped underneath.
	ErrBillingProvider = errors.New("billing provider error")
)

func classify(err error) error {
	if isNetworkError(err) {
		return errors.Join(ErrNetworkUnavailable, err)
	}
	return errors.Join(ErrBillingProvider, err)
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixedBackoffSchedule(t *testing.T) {
	policy := FixedBackoff{}
	require.Equal(t, time.Hour, policy.NextRetryDelay(1))
	require.Equal(t, 4*time.Hour, policy.NextRetryDelay(2))
	require.Equal(t, 12*time.Hour, policy.NextRetryDelay(3))
	require.Equal(t, 24*time.Hour, policy.NextRetryDelay(4))
	require.Equal(t, 24*time.Hour, policy.NextRetryDelay(9))
}

func TestCustomerMessageFallsBackToGeneric(t *testing.T) {
	require.Contains(t, CustomerMessage("expired_card"), "expired")
	require.Contains(t, CustomerMessage("insufficient_funds"), "insufficient funds")
	generic := CustomerMessage("some_unknown_gateway_code")
	require.Equal(t, CustomerMessage(""), generic)
	require.NotContains(t, generic, "some_unknown_gateway_code")
}

func TestIdempotencyKeyUsesScheduledDate(t *testing.T) {
	billingAt := time.Date(2026, 3, 6, 10, 30, 0, 0, time.UTC)
	key := IdempotencyKeyFor(1234, billingAt)
	require.Equal(t, "sub_1234_billing_2026-03-06", key)

	// Same cycle, different attempt times share the key.
	require.Equal(t, key, IdempotencyKeyFor(1234, billingAt.Add(time.Hour)))
}

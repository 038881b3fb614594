package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ledgerKeyPrefix = "storefront:payment_intent:"
	committedPrefix = "committed:"
)

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// compareAndCommit replaces the claim held by ARGV[1] with ARGV[2] and a new
// expiry of ARGV[3] seconds.
var compareAndCommit = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "EX", ARGV[3])
	return 1
end
return 0
`)

// PaymentLedger implements repository.PaymentLedger with SET NX claims.
type PaymentLedger struct {
	client       *redis.Client
	claimTTL     time.Duration
	committedTTL time.Duration
}

// NewPaymentLedger creates a ledger. claimTTL bounds how long a crashed
// attempt can block a retry; committedTTL is how long a used intent is
// remembered.
func NewPaymentLedger(client *redis.Client, claimTTL, committedTTL time.Duration) *PaymentLedger {
	return &PaymentLedger{
		client:       client,
		claimTTL:     claimTTL,
		committedTTL: committedTTL,
	}
}

// Claim reserves intentID for attemptID.
func (l *PaymentLedger) Claim(ctx context.Context, intentID, attemptID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, ledgerKeyPrefix+intentID, attemptID, l.claimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim payment intent: %w", err)
	}
	return ok, nil
}

// Release drops the claim when attemptID still holds it.
func (l *PaymentLedger) Release(ctx context.Context, intentID, attemptID string) error {
	if err := compareAndDelete.Run(ctx, l.client, []string{ledgerKeyPrefix + intentID}, attemptID).Err(); err != nil {
		return fmt.Errorf("redis release payment intent: %w", err)
	}
	return nil
}

// Commit records that intentID produced the receipt reference.
func (l *PaymentLedger) Commit(ctx context.Context, intentID, attemptID, reference string) error {
	n, err := compareAndCommit.Run(ctx, l.client,
		[]string{ledgerKeyPrefix + intentID},
		attemptID, committedPrefix+reference, int(l.committedTTL.Seconds()),
	).Int()
	if err != nil {
		return fmt.Errorf("redis commit payment intent: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("payment intent %s is not held by attempt %s", intentID, attemptID)
	}
	return nil
}

// Reference returns the receipt reference recorded for intentID, or "" when
// the intent is unclaimed or still in flight.
func (l *PaymentLedger) Reference(ctx context.Context, intentID string) (string, error) {
	v, err := l.client.Get(ctx, ledgerKeyPrefix+intentID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get payment intent: %w", err)
	}
	ref, _ := strings.CutPrefix(v, committedPrefix)
	if ref == v {
		return "", nil
	}
	return ref, nil
}

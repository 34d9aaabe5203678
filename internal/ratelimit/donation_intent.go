package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/warrantydesk/warrantydesk/internal/config"
)

const keyDonationIntent = "donation:intent:ip:%s"

// Per-source budget for the public payment-intent endpoint.
const (
	donationIntentRate  = 0.5
	donationIntentBurst = 5
)

// DonationIntentLimiter throttles anonymous payment-intent creation per
// source IP. Without a redis address it is disabled and admits everything.
type DonationIntentLimiter struct {
	enabled bool
	bucket  *TokenBucket
}

func NewDonationIntentLimiter(cfg config.Config) *DonationIntentLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return &DonationIntentLimiter{}
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	return &DonationIntentLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
	}
}

func (l *DonationIntentLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *DonationIntentLimiter) Allow(ctx context.Context, sourceIP string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	key := fmt.Sprintf(keyDonationIntent, strings.TrimSpace(sourceIP))
	return l.bucket.Allow(ctx, key, donationIntentRate, donationIntentBurst)
}

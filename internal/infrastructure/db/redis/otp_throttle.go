package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultResendInterval = time.Minute

// OTPThrottle allows one code per address per interval.
// Key format: otp:resend:<email>
type OTPThrottle struct {
	client   *redis.Client
	interval time.Duration
}

func NewOTPThrottle(client *redis.Client, interval time.Duration) *OTPThrottle {
	if interval <= 0 {
		interval = defaultResendInterval
	}
	return &OTPThrottle{client: client, interval: interval}
}

// Allow claims the resend slot for email. It returns false while a previous
// claim is still live.
func (t *OTPThrottle) Allow(ctx context.Context, email string) (bool, error) {
	ok, err := t.client.SetNX(ctx, t.key(email), "1", t.interval).Result()
	if err != nil {
		return false, fmt.Errorf("otp throttle: %w", err)
	}
	return ok, nil
}

func (t *OTPThrottle) key(email string) string {
	return "otp:resend:" + strings.ToLower(strings.TrimSpace(email))
}

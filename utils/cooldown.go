package utils

import (
	"context"
	"sync"
	"time"
)

type cooldownEntry struct {
	expiresAt time.Time
}

var (
	cooldowns   = map[string]cooldownEntry{}
	cooldownsMu sync.Mutex
)

// EmailCooldownTrySet sets a cooldown key for sending a confirmation email.
// Returns true if set, false while still cooling down. Prefer Redis;
// fallback to memory (single-instance only).
func EmailCooldownTrySet(email string, cooldown time.Duration) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ok, err := rc.SetNX(ctx, "cooldown:email:"+email, "1", cooldown).Result()
		if err == nil {
			return ok
		}
		// On Redis error fall through to the memory fallback.
	}
	cooldownsMu.Lock()
	defer cooldownsMu.Unlock()
	if entry, ok := cooldowns[email]; ok && time.Now().Before(entry.expiresAt) {
		return false
	}
	cooldowns[email] = cooldownEntry{expiresAt: time.Now().Add(cooldown)}
	return true
}

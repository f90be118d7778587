package redis

import "strings"

const defaultKeyPrefix = "halcyon"

// Keyspace names every key the storefront keeps in Redis so that several
// environments can share one instance under different prefixes.
type Keyspace struct {
	prefix string
}

func NewKeyspace(prefix string) Keyspace {
	return Keyspace{prefix: strings.Trim(strings.TrimSpace(prefix), ":")}
}

// IdempotencyKey holds a replayable HTTP response for one caller scope.
func (k Keyspace) IdempotencyKey(scope, id string) string {
	return k.key("idempotency", scope, id)
}

// RateLimitKey holds a fixed-window hit counter.
func (k Keyspace) RateLimitKey(scope string) string {
	return k.key("rate_limit", scope)
}

// AccessSessionKey marks an access token id as live.
func (k Keyspace) AccessSessionKey(accessID string) string {
	return k.key("session", "access", accessID)
}

// LockKey guards a cron run across replicas.
func (k Keyspace) LockKey(name string) string {
	return k.key("lock", name)
}

// WebhookEventKey records a processed provider delivery.
func (k Keyspace) WebhookEventKey(provider, eventID string) string {
	return k.key("webhook", provider, eventID)
}

func (k Keyspace) key(parts ...string) string {
	prefix := k.prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	segments := []string{prefix}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, ":")
}

package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"portfolio-sync-go/internal/models"

	"go.uber.org/zap"
)

// Sentinel errors for token resolution. Both require out-of-band
// remediation (running the token bootstrap flow again), never a retry.
var (
	ErrCredentialMissing = errors.New("credential cache entry missing")
	ErrCredentialExpired = errors.New("access token expired")
)

// TokenBundle is the live authentication material for one broker account:
// the short-lived access token from the cache merged with durable key
// material, with the database credential as fallback for api_key/api_secret.
type TokenBundle struct {
	AccessToken string
	ApiKey      string
	ApiSecret   string
	ExpiresAt   time.Time
	Source      string
}

// cacheEntry is the JSON shape the bootstrap flow writes to the cache.
type cacheEntry struct {
	ApiKey      string `json:"api_key"`
	ApiSecret   string `json:"api_secret"`
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

// Resolver resolves live tokens for broker accounts from the external cache.
type Resolver struct {
	cache TokenCache
	now   func() time.Time
}

func NewResolver(cache TokenCache) *Resolver {
	return &Resolver{cache: cache, now: time.Now}
}

// CacheKey returns the deterministic cache key for a broker account's token
// entry. The bootstrap flow writes to the same key.
func CacheKey(brokerAccountId string) string {
	return fmt.Sprintf("broker:%s:kite", brokerAccountId)
}

// ResolveToken reads the cache entry for the account and merges it with the
// durable credential record. A missing entry is ErrCredentialMissing; an
// entry whose expires_at lies in the past is ErrCredentialExpired. The
// expiry check samples the clock exactly once, and a token expiring at that
// instant is still valid.
func (r *Resolver) ResolveToken(ctx context.Context, account *models.BrokerAccount) (*TokenBundle, error) {
	key := CacheKey(account.Id)

	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, fmt.Errorf("broker account %s: %w", account.Id, ErrCredentialMissing)
		}
		return nil, fmt.Errorf("unable to resolve token for broker account %s: %w", account.Id, err)
	}

	var entry cacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		zap.L().Error("Invalid JSON in token cache entry", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("invalid token cache entry at %s: %w", key, ErrCredentialMissing)
	}
	if entry.AccessToken == "" {
		zap.L().Error("Token cache entry missing access_token", zap.String("key", key))
		return nil, fmt.Errorf("token cache entry at %s has no access_token: %w", key, ErrCredentialMissing)
	}

	now := r.now()
	var expiresAt time.Time
	if entry.ExpiresAt != "" {
		expiresAt, err = time.Parse(time.RFC3339Nano, entry.ExpiresAt)
		if err != nil {
			// An unparseable expiry is treated as still valid; the cache TTL
			// bounds the entry's lifetime regardless.
			zap.L().Warn("Cannot parse expires_at in token cache entry",
				zap.String("key", key),
				zap.String("expires_at", entry.ExpiresAt))
			expiresAt = time.Time{}
		} else if now.After(expiresAt) {
			return nil, fmt.Errorf("token for broker account %s expired at %s: %w",
				account.Id, expiresAt.Format(time.RFC3339), ErrCredentialExpired)
		}
	}

	// Durable fallback for key material the cache entry doesn't carry.
	durable := account.Credential.DecodedCredentials()

	bundle := &TokenBundle{
		AccessToken: entry.AccessToken,
		ApiKey:      entry.ApiKey,
		ApiSecret:   entry.ApiSecret,
		ExpiresAt:   expiresAt,
		Source:      "cache",
	}
	if bundle.ApiKey == "" {
		bundle.ApiKey = durable["api_key"]
	}
	if bundle.ApiSecret == "" {
		bundle.ApiSecret = durable["api_secret"]
	}

	return bundle, nil
}

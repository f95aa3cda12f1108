package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"portfolio-sync-go/internal/models"
)

type fakeCache struct {
	entries map[string]string
	err     error
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	value, ok := c.entries[key]
	if !ok {
		return "", fmt.Errorf("key %s: %w", key, ErrCacheMiss)
	}
	return value, nil
}

func testAccount(id string, durable map[string]string) *models.BrokerAccount {
	account := &models.BrokerAccount{Id: id, BrokerTypeCode: "zerodha"}
	if durable != nil {
		payload, _ := json.Marshal(durable)
		account.Credential = &models.BrokerAccountCredential{
			BrokerAccountId: id,
			Credentials:     payload,
		}
	}
	return account
}

func cacheEntryJSON(t *testing.T, apiKey, accessToken string, expiresAt time.Time) string {
	t.Helper()
	entry := map[string]string{
		"api_key":      apiKey,
		"access_token": accessToken,
	}
	if !expiresAt.IsZero() {
		entry["expires_at"] = expiresAt.Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Failed to marshal cache entry: %v", err)
	}
	return string(data)
}

func TestResolveToken_MissingEntry(t *testing.T) {
	resolver := NewResolver(&fakeCache{entries: map[string]string{}})

	_, err := resolver.ResolveToken(context.Background(), testAccount("acct1", nil))
	if !errors.Is(err, ErrCredentialMissing) {
		t.Errorf("Expected ErrCredentialMissing, got %v", err)
	}
}

func TestResolveToken_MalformedEntry(t *testing.T) {
	resolver := NewResolver(&fakeCache{entries: map[string]string{
		CacheKey("acct1"): "not-json",
	}})

	_, err := resolver.ResolveToken(context.Background(), testAccount("acct1", nil))
	if !errors.Is(err, ErrCredentialMissing) {
		t.Errorf("Expected ErrCredentialMissing for malformed entry, got %v", err)
	}
}

func TestResolveToken_EmptyAccessToken(t *testing.T) {
	resolver := NewResolver(&fakeCache{entries: map[string]string{
		CacheKey("acct1"): `{"api_key":"key","access_token":""}`,
	}})

	_, err := resolver.ResolveToken(context.Background(), testAccount("acct1", nil))
	if !errors.Is(err, ErrCredentialMissing) {
		t.Errorf("Expected ErrCredentialMissing for empty access_token, got %v", err)
	}
}

func TestResolveToken_ExpiryBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		expectErr bool
	}{
		{"expires in the future", now.Add(time.Hour), false},
		{"expires exactly now", now, false},
		{"expired one nanosecond ago", now.Add(-time.Nanosecond), true},
		{"expired an hour ago", now.Add(-time.Hour), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resolver := NewResolver(&fakeCache{entries: map[string]string{
				CacheKey("acct1"): cacheEntryJSON(t, "key", "token", tc.expiresAt),
			}})
			resolver.now = func() time.Time { return now }

			bundle, err := resolver.ResolveToken(context.Background(), testAccount("acct1", nil))
			if tc.expectErr {
				if !errors.Is(err, ErrCredentialExpired) {
					t.Errorf("Expected ErrCredentialExpired, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected valid token, got %v", err)
			}
			if bundle.AccessToken != "token" {
				t.Errorf("Unexpected access token: %s", bundle.AccessToken)
			}
		})
	}
}

func TestResolveToken_UnparseableExpiryStillValid(t *testing.T) {
	resolver := NewResolver(&fakeCache{entries: map[string]string{
		CacheKey("acct1"): `{"api_key":"key","access_token":"token","expires_at":"yesterday"}`,
	}})

	bundle, err := resolver.ResolveToken(context.Background(), testAccount("acct1", nil))
	if err != nil {
		t.Fatalf("Expected token despite unparseable expiry, got %v", err)
	}
	if !bundle.ExpiresAt.IsZero() {
		t.Errorf("Expected zero ExpiresAt, got %v", bundle.ExpiresAt)
	}
}

func TestResolveToken_DurableFallback(t *testing.T) {
	resolver := NewResolver(&fakeCache{entries: map[string]string{
		CacheKey("acct1"): `{"access_token":"token"}`,
	}})

	account := testAccount("acct1", map[string]string{
		"api_key":    "durable-key",
		"api_secret": "durable-secret",
	})

	bundle, err := resolver.ResolveToken(context.Background(), account)
	if err != nil {
		t.Fatalf("ResolveToken failed: %v", err)
	}
	if bundle.ApiKey != "durable-key" {
		t.Errorf("Expected api_key from durable credential, got %q", bundle.ApiKey)
	}
	if bundle.ApiSecret != "durable-secret" {
		t.Errorf("Expected api_secret from durable credential, got %q", bundle.ApiSecret)
	}
}

func TestResolveToken_CachePrecedesDurable(t *testing.T) {
	resolver := NewResolver(&fakeCache{entries: map[string]string{
		CacheKey("acct1"): `{"api_key":"cache-key","access_token":"token"}`,
	}})

	account := testAccount("acct1", map[string]string{"api_key": "durable-key"})

	bundle, err := resolver.ResolveToken(context.Background(), account)
	if err != nil {
		t.Fatalf("ResolveToken failed: %v", err)
	}
	if bundle.ApiKey != "cache-key" {
		t.Errorf("Expected cache api_key to win, got %q", bundle.ApiKey)
	}
}

func TestResolveToken_CacheFailurePropagates(t *testing.T) {
	cacheErr := errors.New("connection refused")
	resolver := NewResolver(&fakeCache{err: cacheErr})

	_, err := resolver.ResolveToken(context.Background(), testAccount("acct1", nil))
	if !errors.Is(err, cacheErr) {
		t.Errorf("Expected cache failure to propagate, got %v", err)
	}
	if errors.Is(err, ErrCredentialMissing) {
		t.Errorf("Cache failure must not be classified as a missing credential")
	}
}

func TestCacheKey(t *testing.T) {
	if got := CacheKey("abc-123"); got != "broker:abc-123:kite" {
		t.Errorf("Unexpected cache key: %s", got)
	}
}

package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-commerce/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const credentialCacheKeyPrefix = "go-commerce::credentials::v1"

// CachedCredentialStore serves Load from cache and drops the cached pair on
// every Save, so a restored pair is never older than the last write through
// this store.
type CachedCredentialStore struct {
	base  core.CredentialStore
	cache repositorycache.CacheService
}

func NewCachedCredentialStore(
	base core.CredentialStore,
	cacheService repositorycache.CacheService,
) (*CachedCredentialStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base credential store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: credential cache service is required")
	}
	return &CachedCredentialStore{base: base, cache: cacheService}, nil
}

// CredentialCacheKey returns go-commerce::credentials::v1::<store key> with
// the key URL-path escaped.
func CredentialCacheKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("sqlstore: store key is required")
	}
	return credentialCacheKeyPrefix + "::" + url.PathEscape(key), nil
}

func (s *CachedCredentialStore) Load(ctx context.Context, key string) (core.Credentials, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Credentials{}, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	cacheKey, err := CredentialCacheKey(key)
	if err != nil {
		return core.Credentials{}, err
	}
	creds, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Credentials, error) {
		return s.base.Load(ctx, strings.TrimSpace(key))
	})
	if err != nil {
		return core.Credentials{}, err
	}
	creds.ExpiresAt = cloneTimePointer(creds.ExpiresAt)
	return creds, nil
}

func (s *CachedCredentialStore) Save(ctx context.Context, key string, creds core.Credentials) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	cacheKey, err := CredentialCacheKey(key)
	if err != nil {
		return err
	}
	if err := s.base.Save(ctx, strings.TrimSpace(key), creds); err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

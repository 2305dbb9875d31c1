package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-commerce/core"
	"github.com/goliatone/go-commerce/security"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	payloadFormatJSON   = "json"
	payloadFormatSealed = "sealed"
)

var ErrCredentialsNotFound = errors.New("sqlstore: credentials not found")

type CredentialStoreOption func(*CredentialStore)

// WithSecretProvider seals the stored token pair. Rows written without a
// provider stay readable after one is configured.
func WithSecretProvider(provider core.SecretProvider) CredentialStoreOption {
	return func(s *CredentialStore) {
		s.secrets = provider
	}
}

// CredentialStore keeps one token pair per store key.
type CredentialStore struct {
	db      *bun.DB
	repo    repository.Repository[*credentialRecord]
	secrets core.SecretProvider
	now     func() time.Time
}

type credentialPayload struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	TokenURI     string     `json:"token_uri,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func NewCredentialStore(db *bun.DB, opts ...CredentialStoreOption) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*credentialRecord](db, credentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	store := &CredentialStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *CredentialStore) Save(ctx context.Context, key string, creds core.Credentials) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: store key is required")
	}
	now := s.now()
	updatedAt := creds.UpdatedAt.UTC()
	if creds.UpdatedAt.IsZero() {
		updatedAt = now
	}
	raw, err := json.Marshal(credentialPayload{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenURI:     creds.TokenURI,
		ExpiresAt:    cloneTimePointer(creds.ExpiresAt),
		UpdatedAt:    updatedAt,
	})
	if err != nil {
		return fmt.Errorf("sqlstore: encode credential payload: %w", err)
	}
	format := payloadFormatJSON
	if s.secrets != nil {
		raw, err = s.secrets.Encrypt(security.WithBinding(ctx, key), raw)
		if err != nil {
			return fmt.Errorf("sqlstore: seal credential payload: %w", err)
		}
		format = payloadFormatSealed
	}

	record := &credentialRecord{
		ID:            uuid.NewString(),
		StoreKey:      key,
		Payload:       raw,
		PayloadFormat: format,
		TokenURI:      strings.TrimSpace(creds.TokenURI),
		ExpiresAt:     cloneTimePointer(creds.ExpiresAt),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err = s.db.NewInsert().
		Model(record).
		On("CONFLICT (store_key) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("payload_format = EXCLUDED.payload_format").
		Set("token_uri = EXCLUDED.token_uri").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *CredentialStore) Load(ctx context.Context, key string) (core.Credentials, error) {
	if s == nil || s.repo == nil {
		return core.Credentials{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	key = strings.TrimSpace(key)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("store_key", "=", key),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Credentials{}, err
	}
	if len(records) == 0 {
		return core.Credentials{}, fmt.Errorf("%w for key %q", ErrCredentialsNotFound, key)
	}
	return s.decode(ctx, records[0])
}

func (s *CredentialStore) decode(ctx context.Context, record *credentialRecord) (core.Credentials, error) {
	raw := record.Payload
	switch record.PayloadFormat {
	case payloadFormatSealed:
		if s.secrets == nil {
			return core.Credentials{}, fmt.Errorf("sqlstore: credentials for %q are sealed and no secret provider is configured", record.StoreKey)
		}
		opened, err := s.secrets.Decrypt(security.WithBinding(ctx, record.StoreKey), raw)
		if err != nil {
			return core.Credentials{}, fmt.Errorf("sqlstore: open credential payload: %w", err)
		}
		raw = opened
	case payloadFormatJSON, "":
	default:
		return core.Credentials{}, fmt.Errorf("sqlstore: unsupported credential payload format %q", record.PayloadFormat)
	}

	var payload credentialPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return core.Credentials{}, fmt.Errorf("sqlstore: decode credential payload: %w", err)
	}
	tokenURI := payload.TokenURI
	if tokenURI == "" {
		tokenURI = record.TokenURI
	}
	return core.Credentials{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenURI:     tokenURI,
		ExpiresAt:    cloneTimePointer(payload.ExpiresAt),
		UpdatedAt:    payload.UpdatedAt,
	}, nil
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	cloned := value.UTC()
	return &cloned
}

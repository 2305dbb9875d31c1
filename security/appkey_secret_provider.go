package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-commerce/core"
)

type Option func(*AppKeySecretProvider)

type bindingKey struct{}

// WithBinding ties a sealed payload to value, usually the credential store
// key, so a ciphertext copied to another row fails to open.
func WithBinding(ctx context.Context, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, bindingKey{}, strings.TrimSpace(value))
}

func bindingFrom(ctx context.Context) []byte {
	if ctx == nil {
		return nil
	}
	value, _ := ctx.Value(bindingKey{}).(string)
	if value == "" {
		return nil
	}
	return []byte(value)
}

type sealingKey struct {
	id      string
	version int
	key     []byte
}

func (k sealingKey) matches(id string, version int) bool {
	return (id == "" || id == k.id) && (version <= 0 || version == k.version)
}

// AppKeySecretProvider seals stored token pairs with AES-256-GCM under an
// application key. Keys that are not 16, 24 or 32 bytes long are hashed to
// 32 bytes. Retired keys only open payloads, they never seal.
type AppKeySecretProvider struct {
	active  sealingKey
	retired []sealingKey
}

func WithKeyID(id string) Option {
	return func(provider *AppKeySecretProvider) {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			provider.active.id = trimmed
		}
	}
}

func WithVersion(version int) Option {
	return func(provider *AppKeySecretProvider) {
		if version > 0 {
			provider.active.version = version
		}
	}
}

// WithRetiredKey keeps an earlier key available to open credentials sealed
// before a rotation.
func WithRetiredKey(id string, version int, material []byte) Option {
	return func(provider *AppKeySecretProvider) {
		material = bytes.TrimSpace(material)
		if len(material) == 0 {
			return
		}
		provider.retired = append(provider.retired, sealingKey{
			id:      strings.TrimSpace(id),
			version: version,
			key:     normalizeKey(material),
		})
	}
}

func NewAppKeySecretProvider(keyMaterial []byte, opts ...Option) (*AppKeySecretProvider, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	provider := &AppKeySecretProvider{
		active: sealingKey{id: "app-key", version: 1, key: normalizeKey(key)},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	return provider, nil
}

func NewAppKeySecretProviderFromString(key string, opts ...Option) (*AppKeySecretProvider, error) {
	return NewAppKeySecretProvider([]byte(key), opts...)
}

func (p *AppKeySecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	gcm, err := newAEAD(p.active.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}
	binding := bindingFrom(ctx)
	return encodeEnvelope(envelope{
		KeyID:      p.active.id,
		Version:    p.active.version,
		Algorithm:  envelopeAlgorithm,
		Bound:      len(binding) > 0,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, binding)),
	})
}

func (p *AppKeySecretProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	parsed, _, err := decodeEnvelope(ciphertext, true)
	if err != nil {
		return nil, err
	}
	if parsed.Algorithm != envelopeAlgorithm {
		return nil, fmt.Errorf("security: unsupported envelope algorithm %q", parsed.Algorithm)
	}
	key, ok := p.keyFor(parsed.KeyID, parsed.Version)
	if !ok {
		return nil, fmt.Errorf("security: no key for id %q version %d", parsed.KeyID, parsed.Version)
	}

	nonce, err := decodeBase64Field("nonce", parsed.Nonce)
	if err != nil {
		return nil, err
	}
	sealed, err := decodeBase64Field("ciphertext", parsed.Ciphertext)
	if err != nil {
		return nil, err
	}
	gcm, err := newAEAD(key.key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("security: nonce must be %d bytes", gcm.NonceSize())
	}
	var binding []byte
	if parsed.Bound {
		if binding = bindingFrom(ctx); binding == nil {
			return nil, fmt.Errorf("security: payload is bound and no binding was given")
		}
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, binding)
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

// NeedsReseal reports whether ciphertext was sealed by a retired key.
func (p *AppKeySecretProvider) NeedsReseal(ciphertext []byte) bool {
	if p == nil {
		return false
	}
	meta, err := ParseEnvelopeMetadata(ciphertext, true)
	if err != nil {
		return false
	}
	return !p.active.matches(meta.KeyID, meta.Version)
}

func (p *AppKeySecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.active.id
}

func (p *AppKeySecretProvider) Version() int {
	if p == nil {
		return 0
	}
	return p.active.version
}

func (p *AppKeySecretProvider) keyFor(id string, version int) (sealingKey, bool) {
	if p.active.matches(id, version) {
		return p.active, true
	}
	for _, key := range p.retired {
		if key.matches(id, version) {
			return key, true
		}
	}
	return sealingKey{}, false
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return gcm, nil
}

func normalizeKey(value []byte) []byte {
	switch len(value) {
	case 16, 24, 32:
		return append([]byte(nil), value...)
	}
	sum := sha256.Sum256(value)
	return sum[:]
}

var _ core.SecretProvider = (*AppKeySecretProvider)(nil)

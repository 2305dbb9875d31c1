package security

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	envelopePrefix    = "commerce.secret.v1:"
	envelopeAlgorithm = "aes-256-gcm"
)

type envelope struct {
	KeyID      string `json:"kid"`
	Version    int    `json:"ver"`
	Algorithm  string `json:"alg"`
	Bound      bool   `json:"bnd,omitempty"`
	Nonce      string `json:"nonce,omitempty"`
	Ciphertext string `json:"ciphertext"`
}

type EnvelopeMetadata struct {
	HasPrefix bool
	KeyID     string
	Version   int
	Algorithm string
	Bound     bool
}

// ParseEnvelopeMetadata reads the key id and version a payload was sealed
// with, without decrypting it.
func ParseEnvelopeMetadata(ciphertext []byte, allowMissingPrefix bool) (EnvelopeMetadata, error) {
	env, hasPrefix, err := decodeEnvelope(ciphertext, allowMissingPrefix)
	if err != nil {
		return EnvelopeMetadata{}, err
	}
	return EnvelopeMetadata{
		HasPrefix: hasPrefix,
		KeyID:     env.KeyID,
		Version:   env.Version,
		Algorithm: env.Algorithm,
		Bound:     env.Bound,
	}, nil
}

func encodeEnvelope(env envelope) ([]byte, error) {
	env.KeyID = strings.TrimSpace(env.KeyID)
	env.Algorithm = strings.ToLower(strings.TrimSpace(env.Algorithm))
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("security: encode envelope: %w", err)
	}
	return append([]byte(envelopePrefix), data...), nil
}

func decodeEnvelope(ciphertext []byte, allowMissingPrefix bool) (envelope, bool, error) {
	if len(ciphertext) == 0 {
		return envelope{}, false, fmt.Errorf("security: ciphertext is required")
	}
	payload := string(ciphertext)
	hasPrefix := strings.HasPrefix(payload, envelopePrefix)
	if hasPrefix {
		payload = strings.TrimPrefix(payload, envelopePrefix)
	} else if !allowMissingPrefix {
		return envelope{}, false, fmt.Errorf("security: invalid ciphertext envelope prefix")
	}

	parsed := envelope{}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return envelope{}, false, fmt.Errorf("security: decode envelope: %w", err)
	}
	parsed.KeyID = strings.TrimSpace(parsed.KeyID)
	parsed.Algorithm = strings.ToLower(strings.TrimSpace(parsed.Algorithm))
	if parsed.Algorithm == "" {
		parsed.Algorithm = envelopeAlgorithm
	}
	if parsed.Ciphertext == "" {
		return envelope{}, false, fmt.Errorf("security: envelope ciphertext is required")
	}
	return parsed, hasPrefix, nil
}

func decodeBase64Field(name string, value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("security: envelope %s is required", name)
	}
	decoded, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("security: decode %s: %w", name, err)
	}
	return decoded, nil
}

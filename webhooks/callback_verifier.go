package webhooks

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-commerce/core"
	goerrors "github.com/goliatone/go-errors"
)

// SignatureHeader carries the base64 RSA-SHA256 signature of a callback body.
const SignatureHeader = "CB-SIGNATURE"

var (
	ErrBodyRequired       = errors.New("webhooks: callback body is required")
	ErrSignatureRequired  = errors.New("webhooks: callback signature is required")
	ErrSignatureEncoding  = errors.New("webhooks: callback signature is not valid base64")
	ErrSignatureMismatch  = errors.New("webhooks: callback signature verification failed")
	ErrInvalidCallbackKey = errors.New("webhooks: callback key is invalid")
	ErrNoProviderKey      = errors.New("webhooks: no provider callback key configured")
)

// DefaultCallbackVerifier reports ErrNoProviderKey. No provider key ships
// with this module; build a verifier from the provider's published PEM with
// NewCallbackVerifier.
func DefaultCallbackVerifier() (*CallbackVerifier, error) {
	return nil, ErrNoProviderKey
}

// CallbackVerifier checks RSA-SHA256 (PKCS#1 v1.5) signatures of callback
// bodies against a single public key. It holds no mutable state.
type CallbackVerifier struct {
	key *rsa.PublicKey
}

func NewCallbackVerifier(pemBytes []byte) (*CallbackVerifier, error) {
	key, err := ParseCallbackKey(pemBytes)
	if err != nil {
		return nil, err
	}
	return &CallbackVerifier{key: key}, nil
}

func NewCallbackVerifierFromKey(key *rsa.PublicKey) (*CallbackVerifier, error) {
	if key == nil || key.N == nil || key.N.Sign() <= 0 {
		return nil, fmt.Errorf("%w: public key is required", ErrInvalidCallbackKey)
	}
	return &CallbackVerifier{key: key}, nil
}

// ParseCallbackKey accepts PKIX ("PUBLIC KEY"), PKCS#1 ("RSA PUBLIC KEY") and
// certificate PEM blocks holding an RSA key.
func ParseCallbackKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: no pem block found", ErrInvalidCallbackKey)
	}
	switch block.Type {
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCallbackKey, err)
		}
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: expected rsa key, got %T", ErrInvalidCallbackKey, parsed)
		}
		return key, nil
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCallbackKey, err)
		}
		return key, nil
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCallbackKey, err)
		}
		key, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: expected rsa certificate key, got %T", ErrInvalidCallbackKey, cert.PublicKey)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: unsupported pem block %q", ErrInvalidCallbackKey, block.Type)
	}
}

// Verify reports whether signature is a valid signature of body. Any
// malformed input yields false.
func (v *CallbackVerifier) Verify(body []byte, signature string) bool {
	return v.Check(body, signature) == nil
}

// Check is Verify with the reason for a negative outcome.
func (v *CallbackVerifier) Check(body []byte, signature string) error {
	if v == nil || v.key == nil {
		return fmt.Errorf("%w: verifier has no key", ErrInvalidCallbackKey)
	}
	if body == nil {
		return &SignatureError{Err: ErrBodyRequired}
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return &SignatureError{Err: ErrSignatureRequired}
	}
	decoded, err := decodeSignature(signature)
	if err != nil {
		return &SignatureError{Err: ErrSignatureEncoding, Cause: err}
	}
	if len(decoded) != v.key.Size() {
		return &SignatureError{
			Err:   ErrSignatureMismatch,
			Cause: fmt.Errorf("signature is %d bytes, key expects %d", len(decoded), v.key.Size()),
		}
	}
	digest := sha256.Sum256(body)
	if err := rsa.VerifyPKCS1v15(v.key, crypto.SHA256, digest[:], decoded); err != nil {
		return &SignatureError{Err: ErrSignatureMismatch, Cause: err}
	}
	return nil
}

// VerifyRequest checks an inbound callback using its CB-SIGNATURE header.
func (v *CallbackVerifier) VerifyRequest(_ context.Context, req core.InboundRequest) error {
	body := req.Body
	if body == nil {
		body = []byte{}
	}
	return v.Check(body, headerValue(req.Headers, SignatureHeader))
}

func decodeSignature(signature string) ([]byte, error) {
	signature = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, signature)
	if decoded, err := base64.StdEncoding.DecodeString(signature); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(signature)
}

// SignatureError is returned by Check. Err is one of the package sentinels.
type SignatureError struct {
	Err   error
	Cause error
}

func (e *SignatureError) Error() string {
	if e == nil || e.Err == nil {
		return ErrSignatureMismatch.Error()
	}
	if e.Cause != nil {
		return e.Err.Error() + ": " + e.Cause.Error()
	}
	return e.Err.Error()
}

func (e *SignatureError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *SignatureError) ToServiceError() *goerrors.Error {
	if e != nil && (errors.Is(e.Err, ErrBodyRequired) || errors.Is(e.Err, ErrSignatureRequired)) {
		return goerrors.New(e.Error(), goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorTextBadInput)
	}
	return goerrors.New(e.Error(), goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.ErrorTextCallbackSignature)
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// TokenResponse is the decoded token endpoint payload. Raw keeps every field
// the endpoint returned, including ones without a typed counterpart.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	Scope        string
	Raw          map[string]any
}

func (r TokenResponse) clone() TokenResponse {
	cloned := r
	cloned.Raw = cloneFields(r.Raw)
	return cloned
}

type tokenEndpointPayload struct {
	TokenResponse
	ErrorCode        string
	ErrorDescription string
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var decoded map[string]any
	if err := decoder.Decode(&decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	if decoded == nil {
		return tokenEndpointPayload{}, fmt.Errorf("payload is not an object")
	}
	accessToken, err := readTokenField(decoded, "access_token")
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	refreshToken, err := readTokenField(decoded, "refresh_token")
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	return tokenEndpointPayload{
		TokenResponse: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    readAnyString(decoded["token_type"]),
			ExpiresIn:    readAnyInt64(decoded["expires_in"]),
			Scope:        readAnyString(decoded["scope"]),
			Raw:          decoded,
		},
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	raw := make(map[string]any, len(values))
	for key := range values {
		raw[key] = values.Get(key)
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		TokenResponse: TokenResponse{
			AccessToken:  strings.TrimSpace(values.Get("access_token")),
			RefreshToken: strings.TrimSpace(values.Get("refresh_token")),
			TokenType:    strings.TrimSpace(values.Get("token_type")),
			ExpiresIn:    expiresIn,
			Scope:        strings.TrimSpace(values.Get("scope")),
			Raw:          raw,
		},
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

// readTokenField accepts only JSON strings. An absent or null field reads as
// empty and is rejected later by the missing-token check.
func readTokenField(decoded map[string]any, key string) (string, error) {
	switch typed := decoded[key].(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(typed), nil
	default:
		return "", fmt.Errorf("%s must be a string, got %T", key, typed)
	}
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed
		}
		if parsed, err := typed.Float64(); err == nil {
			return int64(parsed)
		}
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

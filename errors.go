package commerce

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-commerce/core"
	goerrors "github.com/goliatone/go-errors"
)

// APIMessage is one entry of the "errors" or "warnings" array of a response.
type APIMessage struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// APIError is returned for every non-2xx resource response.
type APIError struct {
	StatusCode int
	RequestID  string
	Errors     []APIMessage
	Body       []byte
}

func (e *APIError) Error() string {
	if e == nil {
		return "commerce: api error"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		switch {
		case item.ID != "" && item.Message != "":
			parts = append(parts, item.ID+": "+item.Message)
		case item.Message != "":
			parts = append(parts, item.Message)
		case item.ID != "":
			parts = append(parts, item.ID)
		}
	}
	message := fmt.Sprintf("commerce: api error (status=%d)", e.StatusCode)
	if len(parts) > 0 {
		message += ": " + strings.Join(parts, "; ")
	}
	return message
}

// ErrorID returns the id of the first reported error, e.g. "not_found".
func (e *APIError) ErrorID() string {
	if e == nil || len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].ID
}

func (e *APIError) ToServiceError() *goerrors.Error {
	status := http.StatusBadGateway
	if e != nil && e.StatusCode > 0 {
		status = e.StatusCode
	}
	var out *goerrors.Error
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		out = goerrors.New(e.Error(), goerrors.CategoryBadInput).WithTextCode(core.ErrorTextBadInput)
	case status == http.StatusUnauthorized:
		out = goerrors.New(e.Error(), goerrors.CategoryAuth).WithTextCode(core.ErrorTextUnauthorized)
	case status == http.StatusForbidden:
		out = goerrors.New(e.Error(), goerrors.CategoryAuthz).WithTextCode(core.ErrorTextUnauthorized)
	case status == http.StatusNotFound:
		out = goerrors.New(e.Error(), goerrors.CategoryNotFound).WithTextCode(core.ErrorTextNotFound)
	case status == http.StatusTooManyRequests:
		out = goerrors.New(e.Error(), goerrors.CategoryRateLimit).WithTextCode(core.ErrorTextRateLimited)
	case status >= http.StatusInternalServerError:
		out = goerrors.New(e.Error(), goerrors.CategoryExternal).WithTextCode(core.ErrorTextExternalFailure)
	default:
		out = goerrors.New(e.Error(), goerrors.CategoryOperation).WithTextCode(core.ErrorTextAPIFailure)
	}
	out.WithCode(status)
	metadata := map[string]any{"status_code": status}
	if e != nil {
		if id := e.ErrorID(); id != "" {
			metadata["error_id"] = id
		}
		if e.RequestID != "" {
			metadata["request_id"] = e.RequestID
		}
	}
	out.WithMetadata(metadata)
	return out
}

func decodeAPIError(res core.TransportResponse) *APIError {
	apiErr := &APIError{
		StatusCode: res.StatusCode,
		Body:       append([]byte(nil), res.Body...),
	}
	if value, ok := res.Metadata["request_id"].(string); ok {
		apiErr.RequestID = value
	}
	var payload struct {
		Errors           []APIMessage `json:"errors"`
		Error            string       `json:"error"`
		ErrorDescription string       `json:"error_description"`
	}
	if err := json.Unmarshal(res.Body, &payload); err == nil {
		apiErr.Errors = payload.Errors
		if len(apiErr.Errors) == 0 && payload.Error != "" {
			apiErr.Errors = []APIMessage{{ID: payload.Error, Message: payload.ErrorDescription}}
		}
	}
	if len(apiErr.Errors) == 0 {
		apiErr.Errors = []APIMessage{{Message: http.StatusText(res.StatusCode)}}
	}
	return apiErr
}

package query

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-commerce/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestGetAccountMessage_ValidateReturnsRichError(t *testing.T) {
	err := (GetAccountMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorTextBadInput {
		t.Fatalf("expected %q text code, got %q", core.ErrorTextBadInput, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
	validation := rich.AllValidationErrors()
	if len(validation) == 0 {
		t.Fatalf("expected validation errors in envelope")
	}
	if validation[0].Field != "account_id" {
		t.Fatalf("expected account_id validation field, got %q", validation[0].Field)
	}
}

func TestGetServerTimeQuery_NilReaderReturnsRichError(t *testing.T) {
	var q *GetServerTimeQuery
	_, err := q.Query(context.Background(), GetServerTimeMessage{})
	if err == nil {
		t.Fatalf("expected dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorTextInternal {
		t.Fatalf("expected %q text code, got %q", core.ErrorTextInternal, rich.TextCode)
	}
	if rich.Code != http.StatusInternalServerError {
		t.Fatalf("expected %d code, got %d", http.StatusInternalServerError, rich.Code)
	}
}

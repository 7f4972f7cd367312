package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  &AppError{Code: ErrCodeNotFound, Message: "resource not found"},
			want: "resource not found",
		},
		{
			name: "error with cause",
			err:  QueryError(errors.New("connection reset"), "lookup profile"),
			want: "lookup profile: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTaxonomyPredicates(t *testing.T) {
	cause := errors.New("boom")
	if !IsProvider(ProviderError(cause, "get session")) {
		t.Error("expected provider error")
	}
	if !IsAuth(AuthError(cause, "invalid_grant", "sign in")) {
		t.Error("expected auth error")
	}
	if !IsQuery(fmt.Errorf("resolve: %w", QueryError(cause, "lookup"))) {
		t.Error("expected wrapped query error to match")
	}
	if IsAuth(QueryError(cause, "lookup")) {
		t.Error("query error must not match auth")
	}
}

func TestIsCode_MatchesNestedAppError(t *testing.T) {
	inner := FromContext(context.DeadlineExceeded)
	outer := QueryError(inner, "lookup profile")

	if !IsQuery(outer) {
		t.Error("expected outer code to match")
	}
	if !IsTimeout(outer) {
		t.Error("expected nested timeout to match")
	}
	if GetCode(outer) != ErrCodeQuery {
		t.Errorf("GetCode() = %v, want %v", GetCode(outer), ErrCodeQuery)
	}
}

func TestGetReason(t *testing.T) {
	err := fmt.Errorf("sign in: %w", AuthError(errors.New("oauth2: cannot fetch token"), "invalid_grant", "credentials rejected"))
	if got := GetReason(err); got != "invalid_grant" {
		t.Errorf("GetReason() = %q, want invalid_grant", got)
	}
	if got := GetReason(errors.New("plain")); got != "" {
		t.Errorf("GetReason() = %q, want empty", got)
	}
}

func TestFromContext(t *testing.T) {
	if !IsTimeout(FromContext(context.DeadlineExceeded)) {
		t.Error("deadline should map to timeout")
	}
	if !IsCanceled(FromContext(context.Canceled)) {
		t.Error("canceled should map to canceled")
	}
	plain := errors.New("plain")
	if FromContext(plain) != plain {
		t.Error("other errors must pass through")
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if got := Wrapf(errors.New("e"), ErrCodeInternal, "load %s", "profile"); got.Message != "load profile" {
		t.Errorf("Wrapf message = %q", got.Message)
	}
}

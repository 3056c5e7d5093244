package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestParseServerError(t *testing.T) {
	field := ParseServerError("400:arg1,arg2:description")
	if code, ok := field.Code(); !ok || code != http.StatusBadRequest {
		t.Fatalf("expected code 400, got %d (%v)", code, ok)
	}
	if len(field.Args) != 2 || field.Args[0] != "arg1" || field.Args[1] != "arg2" {
		t.Fatalf("unexpected args %v", field.Args)
	}
	if field.Description != "description" {
		t.Fatalf("unexpected description %q", field.Description)
	}

	field = ParseServerError("400::message")
	if len(field.Args) != 0 || field.Description != "message" {
		t.Fatalf("unexpected parse of empty args: %+v", field)
	}

	field = ParseServerError("400::")
	if code, ok := field.Code(); !ok || code != 400 || field.Description != "" {
		t.Fatalf("unexpected parse of empty description: %+v", field)
	}

	field = ParseServerError("")
	if _, ok := field.Code(); ok {
		t.Fatalf("expected no code for empty error field")
	}

	field = ParseServerError("abc::oops")
	if _, ok := field.Code(); ok {
		t.Fatalf("expected no code for non numeric prefix")
	}
	if field.Description != "oops" {
		t.Fatalf("unexpected description %q", field.Description)
	}
}

func TestTransportServerError_Accessors(t *testing.T) {
	err := serverError("401::Authentication invalid")
	if code, ok := err.Code(); !ok || code != 401 {
		t.Fatalf("expected code 401, got %d", code)
	}
	if err.Description() != "Authentication invalid" {
		t.Fatalf("unexpected description %q", err.Description())
	}
	if !errors.Is(err, ErrStream) {
		t.Fatalf("expected server error to unwrap to ErrStream")
	}
	var nilErr *TransportServerError
	if nilErr.ErrorField() != "" {
		t.Fatalf("expected empty field on nil error")
	}
}

func TestSentinelHierarchy(t *testing.T) {
	if !errors.Is(ErrTransportTimeout, ErrTransport) || !errors.Is(ErrTransportTimeout, ErrStream) {
		t.Fatalf("expected timeout to unwrap to transport and stream")
	}
	if !errors.Is(ErrClientInvalidOperation, ErrClient) {
		t.Fatalf("expected client invalid operation to unwrap to client error")
	}
	if errors.Is(ErrClientInvalidOperation, ErrTransport) {
		t.Fatalf("client errors must not match transport errors")
	}
}

func TestTranslateTransportError_MapsVocabulary(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		textCode  string
		predicate func(error) bool
	}{
		{"invalid operation", fmt.Errorf("%w: not connected", ErrTransportInvalidOperation), StreamErrorTransportInvalidOperation, IsTransportError},
		{"timeout", ErrTransportTimeout, StreamErrorTransportTimeout, IsTransportTimeout},
		{"connection closed", ErrTransportConnectionClosed, StreamErrorTransportConnectionClosed, IsTransportError},
		{"transport", ErrTransport, StreamErrorTransport, IsTransportError},
		{"client invalid operation", ErrClientInvalidOperation, StreamErrorClientInvalidOperation, IsClientInvalidOperation},
		{"client", ErrClient, StreamErrorClient, IsClientError},
		{"server", serverError("400::replay id out of range"), StreamErrorServer, IsServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			translated := TranslateTransportError(tc.err)
			var richErr *goerrors.Error
			if !goerrors.As(translated, &richErr) {
				t.Fatalf("expected go-errors envelope, got %T", translated)
			}
			if richErr.TextCode != tc.textCode {
				t.Fatalf("expected %s, got %s", tc.textCode, richErr.TextCode)
			}
			if !tc.predicate(translated) {
				t.Fatalf("expected predicate to match %v", translated)
			}
			if !errors.Is(translated, tc.err) {
				t.Fatalf("expected source error to stay reachable")
			}
			if richErr.Message != tc.err.Error() {
				t.Fatalf("expected message %q to be kept, got %q", tc.err.Error(), richErr.Message)
			}
		})
	}
}

func TestTranslateTransportError_ServerMetadata(t *testing.T) {
	translated := TranslateTransportError(serverError("400:a,b:bad replay"))
	var richErr *goerrors.Error
	if !goerrors.As(translated, &richErr) {
		t.Fatalf("expected go-errors envelope")
	}
	if richErr.Metadata["error_code"] != 400 {
		t.Fatalf("unexpected error_code %v", richErr.Metadata["error_code"])
	}
	if richErr.Metadata["error_message"] != "bad replay" {
		t.Fatalf("unexpected error_message %v", richErr.Metadata["error_message"])
	}
	details, ok := ServerErrorDetails(translated)
	if !ok || len(details.Args) != 2 {
		t.Fatalf("expected server details through translation, got %+v", details)
	}
}

func TestTranslateTransportError_PassesThroughForeignErrors(t *testing.T) {
	if TranslateTransportError(nil) != nil {
		t.Fatalf("expected nil passthrough")
	}
	plain := errors.New("value error")
	if got := TranslateTransportError(plain); got != plain {
		t.Fatalf("expected plain error to be returned unchanged")
	}
	if got := TranslateTransportError(context.Canceled); got != context.Canceled {
		t.Fatalf("expected context error to be returned unchanged")
	}
	already := NewReplayError("replay failed")
	if got := TranslateTransportError(already); got != error(already) {
		t.Fatalf("expected stream error to be returned unchanged")
	}
}

func TestPredicates_RejectForeignErrors(t *testing.T) {
	plain := errors.New("boom")
	if IsAuthenticationError(plain) || IsReplayError(plain) || IsServerError(plain) || IsTransportError(plain) || IsClientError(plain) {
		t.Fatalf("expected predicates to reject plain errors")
	}
	if IsAuthenticationError(nil) {
		t.Fatalf("expected nil to be rejected")
	}
	if !IsAuthenticationError(WrapAuthenticationError(plain, "auth failed")) {
		t.Fatalf("expected wrapped authentication error")
	}
	if !IsReplayError(WrapReplayError(plain, "store failed")) {
		t.Fatalf("expected wrapped replay error")
	}
}

func TestNewAuthenticationError_RedactsResponse(t *testing.T) {
	err := NewAuthenticationError("token exchange rejected", map[string]any{
		"error":             "invalid_grant",
		"error_description": "authentication failure",
		"access_token":      "leaked",
	})
	response, ok := err.Metadata["response"].(map[string]any)
	if !ok {
		t.Fatalf("expected response metadata, got %v", err.Metadata)
	}
	if response["access_token"] != RedactedValue {
		t.Fatalf("expected access token to be redacted, got %v", response["access_token"])
	}
	if response["error"] != "invalid_grant" {
		t.Fatalf("expected error to stay visible, got %v", response["error"])
	}
	if err.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 code, got %d", err.Code)
	}

	raw := NewAuthenticationError("token exchange rejected", "<html>oops</html>")
	if raw.Metadata["response"] != "<html>oops</html>" {
		t.Fatalf("expected raw text response, got %v", raw.Metadata["response"])
	}
}

package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	StreamErrorAuthenticationFailed      = "STREAM_AUTHENTICATION_FAILED"
	StreamErrorReplay                    = "STREAM_REPLAY_FAILED"
	StreamErrorServer                    = "STREAM_SERVER_ERROR"
	StreamErrorTransport                 = "STREAM_TRANSPORT_ERROR"
	StreamErrorTransportInvalidOperation = "STREAM_TRANSPORT_INVALID_OPERATION"
	StreamErrorTransportTimeout          = "STREAM_TRANSPORT_TIMEOUT"
	StreamErrorTransportConnectionClosed = "STREAM_TRANSPORT_CONNECTION_CLOSED"
	StreamErrorClient                    = "STREAM_CLIENT_ERROR"
	StreamErrorClientInvalidOperation    = "STREAM_CLIENT_INVALID_OPERATION"
	StreamErrorBadInput                  = "STREAM_BAD_INPUT"
	StreamErrorInternal                  = "STREAM_INTERNAL_ERROR"
)

// NewAuthenticationError reports a rejected or failed token exchange.
// response is the decoded token endpoint body, or its raw text when it was
// not JSON.
func NewAuthenticationError(message string, response any) *goerrors.Error {
	err := newStreamError(message, goerrors.CategoryAuth, StreamErrorAuthenticationFailed)
	switch typed := response.(type) {
	case nil:
	case map[string]any:
		err = err.WithMetadata(map[string]any{"response": RedactSensitiveMap(typed)})
	default:
		err = err.WithMetadata(map[string]any{"response": response})
	}
	return err
}

func WrapAuthenticationError(cause error, message string) *goerrors.Error {
	return wrapStreamError(cause, goerrors.CategoryAuth, message, StreamErrorAuthenticationFailed)
}

func NewReplayError(message string) *goerrors.Error {
	return newStreamError(message, goerrors.CategoryBadInput, StreamErrorReplay)
}

func WrapReplayError(cause error, message string) *goerrors.Error {
	return wrapStreamError(cause, goerrors.CategoryBadInput, message, StreamErrorReplay)
}

func NewClientInvalidOperation(message string) *goerrors.Error {
	return newStreamError(message, goerrors.CategoryOperation, StreamErrorClientInvalidOperation)
}

func NewBadInputError(message string) *goerrors.Error {
	return newStreamError(message, goerrors.CategoryBadInput, StreamErrorBadInput)
}

func IsAuthenticationError(err error) bool {
	return hasStreamTextCode(err, StreamErrorAuthenticationFailed)
}

func IsReplayError(err error) bool {
	return hasStreamTextCode(err, StreamErrorReplay)
}

func IsServerError(err error) bool {
	return hasStreamTextCode(err, StreamErrorServer)
}

// IsTransportError reports transport failures of every kind.
func IsTransportError(err error) bool {
	return hasStreamTextCode(err,
		StreamErrorTransport,
		StreamErrorTransportInvalidOperation,
		StreamErrorTransportTimeout,
		StreamErrorTransportConnectionClosed,
	)
}

func IsTransportTimeout(err error) bool {
	return hasStreamTextCode(err, StreamErrorTransportTimeout)
}

func IsClientError(err error) bool {
	return hasStreamTextCode(err, StreamErrorClient, StreamErrorClientInvalidOperation)
}

func IsClientInvalidOperation(err error) bool {
	return hasStreamTextCode(err, StreamErrorClientInvalidOperation)
}

func IsBadInputError(err error) bool {
	return hasStreamTextCode(err, StreamErrorBadInput)
}

// ServerErrorDetails returns the parsed server error carried by err.
func ServerErrorDetails(err error) (ServerErrorField, bool) {
	var serverErr *TransportServerError
	if !errors.As(err, &serverErr) {
		return ServerErrorField{}, false
	}
	return ParseServerError(serverErr.ErrorField()), true
}

func hasStreamTextCode(err error, codes ...string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	for _, code := range codes {
		if richErr.TextCode == code {
			return true
		}
	}
	return false
}

func isStreamTextCode(code string) bool {
	return strings.HasPrefix(strings.TrimSpace(code), "STREAM_")
}

func newStreamError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureStreamErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func wrapStreamError(cause error, category goerrors.Category, message string, textCode string) *goerrors.Error {
	if cause == nil {
		return newStreamError(message, category, textCode)
	}
	return ensureStreamErrorEnvelope(
		goerrors.Wrap(cause, category, message).
			WithTextCode(textCode),
	)
}

func streamErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureStreamErrorEnvelope(richErr)
	}
	if translated := TranslateTransportError(err); translated != err {
		if goerrors.As(translated, &richErr) {
			return richErr
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must"):
		return wrapStreamError(err, goerrors.CategoryBadInput, err.Error(), StreamErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureStreamErrorEnvelope(mapped)
}

func ensureStreamErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = streamHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultStreamTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultStreamTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return StreamErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return StreamErrorAuthenticationFailed
	case goerrors.CategoryExternal:
		return StreamErrorTransport
	case goerrors.CategoryOperation:
		return StreamErrorClient
	default:
		return StreamErrorInternal
	}
}

func streamHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryOperation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

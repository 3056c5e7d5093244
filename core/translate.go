package core

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

// TranslateTransportError converts the transport error vocabulary into the
// stream error taxonomy. The source error stays reachable through
// errors.Is/As and its message is kept unchanged. Errors that already carry a
// stream text code and errors outside the vocabulary are returned as-is.
func TranslateTransportError(err error) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && isStreamTextCode(richErr.TextCode) {
		return err
	}

	var serverErr *TransportServerError
	if errors.As(err, &serverErr) {
		field := ParseServerError(serverErr.ErrorField())
		metadata := map[string]any{
			"error_message": field.Description,
			"error_args":    append([]string(nil), field.Args...),
		}
		if code, ok := field.Code(); ok {
			metadata["error_code"] = code
		}
		if serverErr.Response != nil {
			metadata["response"] = serverErr.Response.Clone()
		}
		return wrapStreamError(err, goerrors.CategoryExternal, err.Error(), StreamErrorServer).
			WithMetadata(metadata)
	}

	switch {
	case errors.Is(err, ErrTransportInvalidOperation):
		return wrapStreamError(err, goerrors.CategoryOperation, err.Error(), StreamErrorTransportInvalidOperation)
	case errors.Is(err, ErrTransportTimeout):
		return wrapStreamError(err, goerrors.CategoryExternal, err.Error(), StreamErrorTransportTimeout)
	case errors.Is(err, ErrTransportConnectionClosed):
		return wrapStreamError(err, goerrors.CategoryExternal, err.Error(), StreamErrorTransportConnectionClosed)
	case errors.Is(err, ErrTransport):
		return wrapStreamError(err, goerrors.CategoryExternal, err.Error(), StreamErrorTransport)
	case errors.Is(err, ErrClientInvalidOperation):
		return wrapStreamError(err, goerrors.CategoryOperation, err.Error(), StreamErrorClientInvalidOperation)
	case errors.Is(err, ErrClient):
		return wrapStreamError(err, goerrors.CategoryOperation, err.Error(), StreamErrorClient)
	case errors.Is(err, ErrStream):
		return wrapStreamError(err, goerrors.CategoryInternal, err.Error(), StreamErrorInternal)
	}
	return err
}

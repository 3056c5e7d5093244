package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type streamSentinel struct {
	message string
	parent  error
}

func (e *streamSentinel) Error() string { return e.message }

func (e *streamSentinel) Unwrap() error { return e.parent }

// Errors reported by Transport implementations. Each one unwraps to its
// parent so errors.Is(ErrTransportTimeout, ErrTransport) holds.
var (
	ErrStream                    = errors.New("stream: error")
	ErrTransport                 = &streamSentinel{message: "transport: error", parent: ErrStream}
	ErrTransportInvalidOperation = &streamSentinel{message: "transport: invalid operation", parent: ErrTransport}
	ErrTransportTimeout          = &streamSentinel{message: "transport: timeout", parent: ErrTransport}
	ErrTransportConnectionClosed = &streamSentinel{message: "transport: connection closed", parent: ErrTransport}
	ErrClient                    = &streamSentinel{message: "client: error", parent: ErrStream}
	ErrClientInvalidOperation    = &streamSentinel{message: "client: invalid operation", parent: ErrClient}
)

// TransportServerError is a rejection reported by the server for a request.
// Response holds the reply message whose "error" field follows the
// "<code>:<args>:<description>" format.
type TransportServerError struct {
	Message  string
	Response Message
}

func (e *TransportServerError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if raw := e.ErrorField(); raw != "" {
		return fmt.Sprintf("%s: %s", e.Message, raw)
	}
	return e.Message
}

func (e *TransportServerError) Unwrap() error { return ErrStream }

func (e *TransportServerError) ErrorField() string {
	if e == nil || e.Response == nil {
		return ""
	}
	value, _ := e.Response["error"].(string)
	return value
}

func (e *TransportServerError) Code() (int, bool) {
	return ParseServerError(e.ErrorField()).Code()
}

func (e *TransportServerError) Args() []string {
	return ParseServerError(e.ErrorField()).Args
}

func (e *TransportServerError) Description() string {
	return ParseServerError(e.ErrorField()).Description
}

// ServerErrorField is the parsed form of a server "error" field.
type ServerErrorField struct {
	StatusCode  int
	HasCode     bool
	Args        []string
	Description string
}

func (f ServerErrorField) Code() (int, bool) {
	return f.StatusCode, f.HasCode
}

// ParseServerError parses "<code>::<description>" and
// "<code>:<arg1,arg2>:<description>". The code is the leading three digits.
// The description is the text after the last colon and the args are the
// comma separated text between the first and the last colon.
func ParseServerError(value string) ServerErrorField {
	field := ServerErrorField{}
	if value == "" {
		return field
	}
	if len(value) >= 3 {
		if code, err := strconv.Atoi(value[:3]); err == nil && code >= 0 && isDigits(value[:3]) {
			field.StatusCode = code
			field.HasCode = true
		}
	}
	last := strings.LastIndex(value, ":")
	if last < 0 {
		field.Description = value
		return field
	}
	field.Description = value[last+1:]
	first := strings.Index(value, ":")
	if first < last {
		if args := value[first+1 : last]; args != "" {
			field.Args = strings.Split(args, ",")
		}
	}
	return field
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}

package transport

import (
	"fmt"

	"github.com/goliatone/go-sfstream/core"
)

// NewSubscribeError builds the rejection a server reports for a subscribe request on
// channel. errorField follows the "<code>:<args>:<description>" format.
func NewSubscribeError(channel string, errorField string) *core.TransportServerError {
	return &core.TransportServerError{
		Message: "Subscribe request failed.",
		Response: core.Message{
			"channel":      core.ChannelSubscribe,
			"successful":   false,
			"subscription": channel,
			"error":        errorField,
		},
	}
}

func invalidOperation(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{core.ErrTransportInvalidOperation}, args...)...)
}

func clientInvalidOperation(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{core.ErrClientInvalidOperation}, args...)...)
}

package command

import (
	"strings"

	"github.com/goliatone/go-sfstream/core"
)

const (
	TypeOpen               = "sfstream.command.open"
	TypeClose              = "sfstream.command.close"
	TypeSubscribe          = "sfstream.command.subscription.subscribe"
	TypeUnsubscribe        = "sfstream.command.subscription.unsubscribe"
	TypePublish            = "sfstream.command.publish"
	TypeCommitReplayMarker = "sfstream.command.replay_marker.commit"
)

type OpenMessage struct{}

func (OpenMessage) Type() string { return TypeOpen }

func (OpenMessage) Validate() error { return nil }

type CloseMessage struct{}

func (CloseMessage) Type() string { return TypeClose }

func (CloseMessage) Validate() error { return nil }

type SubscribeMessage struct {
	Channel string
}

func (SubscribeMessage) Type() string { return TypeSubscribe }

func (m SubscribeMessage) Validate() error {
	return validateChannel(m.Channel)
}

type UnsubscribeMessage struct {
	Channel string
}

func (UnsubscribeMessage) Type() string { return TypeUnsubscribe }

func (m UnsubscribeMessage) Validate() error {
	return validateChannel(m.Channel)
}

type PublishMessage struct {
	Channel string
	Data    any
}

func (PublishMessage) Type() string { return TypePublish }

func (m PublishMessage) Validate() error {
	return validateChannel(m.Channel)
}

// CommitReplayMarkerMessage carries a consumed message whose replay marker
// should be stored.
type CommitReplayMarkerMessage struct {
	Message core.Message
}

func (CommitReplayMarkerMessage) Type() string { return TypeCommitReplayMarker }

func (m CommitReplayMarkerMessage) Validate() error {
	if len(m.Message) == 0 {
		return commandValidationError("message", "message is required")
	}
	return validateChannel(m.Message.Channel())
}

func validateChannel(channel string) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return commandValidationError("channel", "channel is required")
	}
	if !strings.HasPrefix(channel, "/") {
		return commandValidationError("channel", "channel must start with /")
	}
	return nil
}

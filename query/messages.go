package query

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-sfstream/core"
)

const (
	TypeGetReplayID     = "sfstream.query.replay_id.get"
	TypeGetReplayMarker = "sfstream.query.replay_marker.get"
	TypeClientStatus    = "sfstream.query.client.status"
)

type GetReplayIDMessage struct {
	Subscription string
}

func (GetReplayIDMessage) Type() string { return TypeGetReplayID }

func (m GetReplayIDMessage) Validate() error {
	return validateSubscription(m.Subscription)
}

type ReplayIDResult struct {
	Subscription string
	ReplayID     int64
	Found        bool
}

type GetReplayMarkerMessage struct {
	Subscription string
}

func (GetReplayMarkerMessage) Type() string { return TypeGetReplayMarker }

func (m GetReplayMarkerMessage) Validate() error {
	return validateSubscription(m.Subscription)
}

type ReplayMarkerResult struct {
	Subscription string
	Marker       core.ReplayMarker
	Found        bool
}

type ClientStatusMessage struct{}

func (ClientStatusMessage) Type() string { return TypeClientStatus }

func (ClientStatusMessage) Validate() error { return nil }

type ClientStatus struct {
	ClientID string
	URL      string
	Closed   bool
}

func validateSubscription(subscription string) error {
	if strings.TrimSpace(subscription) == "" {
		return goerrors.NewValidation("query: validation failed", goerrors.FieldError{
			Field:   "subscription",
			Message: "subscription is required",
		}).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.StreamErrorBadInput)
	}
	return nil
}

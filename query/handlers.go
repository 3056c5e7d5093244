package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-sfstream/core"
)

type ReplayIDReader interface {
	GetReplayID(ctx context.Context, subscription string) (int64, bool, error)
}

type ReplayMarkerReader interface {
	GetReplayMarker(ctx context.Context, subscription string) (core.ReplayMarker, bool, error)
}

type ClientStatusReader interface {
	ID() string
	URL() string
	Closed() bool
}

type GetReplayIDQuery struct {
	reader ReplayIDReader
}

func NewGetReplayIDQuery(reader ReplayIDReader) *GetReplayIDQuery {
	return &GetReplayIDQuery{reader: reader}
}

func (q *GetReplayIDQuery) Query(ctx context.Context, msg GetReplayIDMessage) (ReplayIDResult, error) {
	if q == nil || q.reader == nil {
		return ReplayIDResult{}, queryDependencyError("query: replay id reader is required")
	}
	if err := msg.Validate(); err != nil {
		return ReplayIDResult{}, err
	}
	subscription := strings.TrimSpace(msg.Subscription)
	id, found, err := q.reader.GetReplayID(ctx, subscription)
	if err != nil {
		return ReplayIDResult{}, err
	}
	return ReplayIDResult{Subscription: subscription, ReplayID: id, Found: found}, nil
}

type GetReplayMarkerQuery struct {
	reader ReplayMarkerReader
}

func NewGetReplayMarkerQuery(reader ReplayMarkerReader) *GetReplayMarkerQuery {
	return &GetReplayMarkerQuery{reader: reader}
}

func (q *GetReplayMarkerQuery) Query(ctx context.Context, msg GetReplayMarkerMessage) (ReplayMarkerResult, error) {
	if q == nil || q.reader == nil {
		return ReplayMarkerResult{}, queryDependencyError("query: replay marker reader is required")
	}
	if err := msg.Validate(); err != nil {
		return ReplayMarkerResult{}, err
	}
	subscription := strings.TrimSpace(msg.Subscription)
	marker, found, err := q.reader.GetReplayMarker(ctx, subscription)
	if err != nil {
		return ReplayMarkerResult{}, err
	}
	return ReplayMarkerResult{Subscription: subscription, Marker: marker, Found: found}, nil
}

type ClientStatusQuery struct {
	reader ClientStatusReader
}

func NewClientStatusQuery(reader ClientStatusReader) *ClientStatusQuery {
	return &ClientStatusQuery{reader: reader}
}

func (q *ClientStatusQuery) Query(_ context.Context, _ ClientStatusMessage) (ClientStatus, error) {
	if q == nil || q.reader == nil {
		return ClientStatus{}, queryDependencyError("query: client status reader is required")
	}
	return ClientStatus{
		ClientID: q.reader.ID(),
		URL:      q.reader.URL(),
		Closed:   q.reader.Closed(),
	}, nil
}

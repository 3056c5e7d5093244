package sqlstore

import (
	"time"

	"github.com/goliatone/go-sfstream/core"
	"github.com/uptrace/bun"
)

type replayMarkerRecord struct {
	bun.BaseModel `bun:"table:sfstream_replay_markers,alias:srm"`

	ID           string    `bun:"id,pk"`
	Subscription string    `bun:"subscription,notnull"`
	MarkerDate   string    `bun:"marker_date,notnull"`
	ReplayID     int64     `bun:"replay_id,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newReplayMarkerRecord(subscription string, marker core.ReplayMarker, now time.Time) *replayMarkerRecord {
	return &replayMarkerRecord{
		Subscription: subscription,
		MarkerDate:   marker.Date,
		ReplayID:     marker.ReplayID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *replayMarkerRecord) toDomain() core.ReplayMarker {
	if r == nil {
		return core.ReplayMarker{}
	}
	return core.ReplayMarker{
		Date:     r.MarkerDate,
		ReplayID: r.ReplayID,
	}
}

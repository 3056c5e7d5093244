package sqlstore

import "github.com/goliatone/go-sfstream/replay"

var (
	_ replay.Storage = (*ReplayMarkerStore)(nil)
	_ replay.Storage = (*CachedReplayMarkerStore)(nil)
)

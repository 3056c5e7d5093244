package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-sfstream/core"
	"github.com/goliatone/go-sfstream/replay"
)

var (
	_ gocmd.Querier[GetReplayIDMessage, ReplayIDResult]         = (*GetReplayIDQuery)(nil)
	_ gocmd.Querier[GetReplayMarkerMessage, ReplayMarkerResult] = (*GetReplayMarkerQuery)(nil)
	_ gocmd.Querier[ClientStatusMessage, ClientStatus]          = (*ClientStatusQuery)(nil)

	_ ClientStatusReader = (*core.Client)(nil)
	_ ReplayIDReader     = (*replay.Store)(nil)
	_ ReplayMarkerReader = (*replay.Store)(nil)
)

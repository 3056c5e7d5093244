package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-sfstream/core"
)

var (
	_ gocmd.Commander[OpenMessage]               = (*OpenCommand)(nil)
	_ gocmd.Commander[CloseMessage]              = (*CloseCommand)(nil)
	_ gocmd.Commander[SubscribeMessage]          = (*SubscribeCommand)(nil)
	_ gocmd.Commander[UnsubscribeMessage]        = (*UnsubscribeCommand)(nil)
	_ gocmd.Commander[PublishMessage]            = (*PublishCommand)(nil)
	_ gocmd.Commander[CommitReplayMarkerMessage] = (*CommitReplayMarkerCommand)(nil)

	_ StreamService = (*core.Client)(nil)
)

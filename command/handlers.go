package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-sfstream/core"
)

// StreamService is the mutating surface of a streaming client. *core.Client
// implements it.
type StreamService interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(ctx context.Context, channel string) error
	Publish(ctx context.Context, channel string, data any) (core.Message, error)
	CommitReplayMarker(ctx context.Context, message core.Message) error
}

type OpenCommand struct {
	service StreamService
}

func NewOpenCommand(service StreamService) *OpenCommand {
	return &OpenCommand{service: service}
}

func (c *OpenCommand) Execute(ctx context.Context, _ OpenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: open service is required")
	}
	return c.service.Open(ctx)
}

type CloseCommand struct {
	service StreamService
}

func NewCloseCommand(service StreamService) *CloseCommand {
	return &CloseCommand{service: service}
}

func (c *CloseCommand) Execute(ctx context.Context, _ CloseMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: close service is required")
	}
	return c.service.Close(ctx)
}

type SubscribeCommand struct {
	service StreamService
}

func NewSubscribeCommand(service StreamService) *SubscribeCommand {
	return &SubscribeCommand{service: service}
}

func (c *SubscribeCommand) Execute(ctx context.Context, msg SubscribeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: subscribe service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.Subscribe(ctx, msg.Channel)
}

type UnsubscribeCommand struct {
	service StreamService
}

func NewUnsubscribeCommand(service StreamService) *UnsubscribeCommand {
	return &UnsubscribeCommand{service: service}
}

func (c *UnsubscribeCommand) Execute(ctx context.Context, msg UnsubscribeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: unsubscribe service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.Unsubscribe(ctx, msg.Channel)
}

// PublishCommand stores the server response in the result collector carried
// by ctx, when there is one.
type PublishCommand struct {
	service StreamService
}

func NewPublishCommand(service StreamService) *PublishCommand {
	return &PublishCommand{service: service}
}

func (c *PublishCommand) Execute(ctx context.Context, msg PublishMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: publish service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Publish(ctx, msg.Channel, msg.Data)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CommitReplayMarkerCommand struct {
	service StreamService
}

func NewCommitReplayMarkerCommand(service StreamService) *CommitReplayMarkerCommand {
	return &CommitReplayMarkerCommand{service: service}
}

func (c *CommitReplayMarkerCommand) Execute(ctx context.Context, msg CommitReplayMarkerMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: replay marker service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.CommitReplayMarker(ctx, msg.Message)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

package sfstream

import (
	"fmt"

	sfcommand "github.com/goliatone/go-sfstream/command"
	sfquery "github.com/goliatone/go-sfstream/query"
)

type Commands struct {
	Open               *sfcommand.OpenCommand
	Close              *sfcommand.CloseCommand
	Subscribe          *sfcommand.SubscribeCommand
	Unsubscribe        *sfcommand.UnsubscribeCommand
	Publish            *sfcommand.PublishCommand
	CommitReplayMarker *sfcommand.CommitReplayMarkerCommand
}

type Queries struct {
	GetReplayID     *sfquery.GetReplayIDQuery
	GetReplayMarker *sfquery.GetReplayMarkerQuery
	ClientStatus    *sfquery.ClientStatusQuery
}

type Facade struct {
	client   *Client
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	markerReader sfquery.ReplayMarkerReader
}

// WithReplayMarkerReader sets the reader behind the GetReplayMarker query.
// By default the client replay store is used when it can read markers.
func WithReplayMarkerReader(reader sfquery.ReplayMarkerReader) FacadeOption {
	return func(options *facadeOptions) {
		options.markerReader = reader
	}
}

func NewFacade(client *Client, opts ...FacadeOption) (*Facade, error) {
	if client == nil {
		return nil, fmt.Errorf("sfstream: client is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	markerReader := cfg.markerReader
	if markerReader == nil {
		markerReader, _ = client.ReplayStore().(sfquery.ReplayMarkerReader)
	}

	facade := &Facade{client: client}
	facade.commands = Commands{
		Open:               sfcommand.NewOpenCommand(client),
		Close:              sfcommand.NewCloseCommand(client),
		Subscribe:          sfcommand.NewSubscribeCommand(client),
		Unsubscribe:        sfcommand.NewUnsubscribeCommand(client),
		Publish:            sfcommand.NewPublishCommand(client),
		CommitReplayMarker: sfcommand.NewCommitReplayMarkerCommand(client),
	}
	facade.queries = Queries{
		GetReplayID:     sfquery.NewGetReplayIDQuery(client.ReplayStore()),
		GetReplayMarker: sfquery.NewGetReplayMarkerQuery(markerReader),
		ClientStatus:    sfquery.NewClientStatusQuery(client),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Client() *Client {
	if f == nil {
		return nil
	}
	return f.client
}

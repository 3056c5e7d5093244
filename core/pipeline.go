package core

import (
	"context"
	"net/http"
)

// Pipeline runs extensions in order. Nil entries are skipped.
type Pipeline []Extension

func NewPipeline(extensions ...Extension) Pipeline {
	out := make(Pipeline, 0, len(extensions))
	for _, ext := range extensions {
		if ext == nil {
			continue
		}
		out = append(out, ext)
	}
	return out
}

func (p Pipeline) BeforeSend(ctx context.Context, messages []Message, headers http.Header) error {
	for _, ext := range p {
		if ext == nil {
			continue
		}
		if err := ext.BeforeSend(ctx, messages, headers); err != nil {
			return err
		}
	}
	return nil
}

func (p Pipeline) AfterReceive(ctx context.Context, messages []Message, headers http.Header) error {
	for _, ext := range p {
		if ext == nil {
			continue
		}
		if err := ext.AfterReceive(ctx, messages, headers); err != nil {
			return err
		}
	}
	return nil
}

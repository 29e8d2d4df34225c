// Package mongo wires the memory.Recorder interface to the MongoDB client.
package mongo

import (
	"context"
	"errors"

	clientsmongo "github.com/agentwarden/warden/features/memory/mongo/clients/mongo"
	"github.com/agentwarden/warden/runtime/memory"
)

type (
	// Options configures the Recorder wrapper.
	Options struct {
		Client clientsmongo.Client
	}

	// Recorder implements memory.Recorder by delegating to the Mongo client.
	Recorder struct {
		client clientsmongo.Client
	}
)

// NewRecorder builds a Mongo-backed memory recorder using the provided client.
func NewRecorder(opts Options) (*Recorder, error) {
	if opts.Client == nil {
		return nil, errors.New("client is required")
	}
	return &Recorder{client: opts.Client}, nil
}

// NewRecorderFromMongo is a helper that instantiates the underlying client
// using the given options.
func NewRecorderFromMongo(opts clientsmongo.Options) (*Recorder, error) {
	client, err := clientsmongo.New(opts)
	if err != nil {
		return nil, err
	}
	return NewRecorder(Options{Client: client})
}

var _ memory.Recorder = (*Recorder)(nil)

// Record appends one audit entry under the given context and kind.
func (r *Recorder) Record(ctx context.Context, contextID, kind string, entry memory.Entry) error {
	return r.client.InsertEntry(ctx, contextID, kind, entry)
}

// List returns the entries recorded under the given context and kind, oldest
// first.
func (r *Recorder) List(ctx context.Context, contextID, kind string) ([]memory.Entry, error) {
	return r.client.ListEntries(ctx, contextID, kind)
}

// Package mongo implements the low-level MongoDB client used by the memory
// recorder.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"

	"github.com/agentwarden/warden/runtime/memory"
)

const (
	defaultCollection = "memory_entries"
	defaultTimeout    = 5 * time.Second
	clientName        = "memory-mongo"
)

type (
	// Client exposes Mongo-backed operations for memory audit entries.
	Client interface {
		health.Pinger

		// InsertEntry appends one audit entry under the given context and kind.
		InsertEntry(ctx context.Context, contextID, kind string, entry memory.Entry) error
		// ListEntries returns the entries recorded under the given context and
		// kind, oldest first.
		ListEntries(ctx context.Context, contextID, kind string) ([]memory.Entry, error)
	}

	// Options configures the Mongo client implementation.
	Options struct {
		Client     *mongodriver.Client
		Database   string
		Collection string
		Timeout    time.Duration
	}

	client struct {
		mongo   *mongodriver.Client
		entries *mongodriver.Collection
		timeout time.Duration
	}

	entryDocument struct {
		ContextID string    `bson:"context_id"`
		Kind      string    `bson:"kind"`
		Tool      string    `bson:"tool"`
		Input     bson.Raw  `bson:"input,omitempty"`
		Output    bson.Raw  `bson:"output,omitempty"`
		Error     string    `bson:"error,omitempty"`
		Success   bool      `bson:"success"`
		Timestamp time.Time `bson:"timestamp"`
	}
)

// New returns a Client backed by the provided MongoDB client. It ensures the
// (context_id, kind, timestamp) query index exists before returning.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collection := opts.Collection
	if collection == "" {
		collection = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collection)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	index := mongodriver.IndexModel{
		Keys: bson.D{
			{Key: "context_id", Value: 1},
			{Key: "kind", Value: 1},
			{Key: "timestamp", Value: 1},
		},
	}
	if _, err := coll.Indexes().CreateOne(ctx, index); err != nil {
		return nil, err
	}
	return &client{
		mongo:   opts.Client,
		entries: coll,
		timeout: timeout,
	}, nil
}

func (c *client) Name() string {
	return clientName
}

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
}

func (c *client) InsertEntry(ctx context.Context, contextID, kind string, entry memory.Entry) error {
	if contextID == "" {
		return errors.New("context id is required")
	}
	if kind == "" {
		return errors.New("kind is required")
	}
	doc, err := fromEntry(contextID, kind, entry)
	if err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err = c.entries.InsertOne(ctx, doc)
	return err
}

func (c *client) ListEntries(ctx context.Context, contextID, kind string) ([]memory.Entry, error) {
	if contextID == "" {
		return nil, errors.New("context id is required")
	}
	if kind == "" {
		return nil, errors.New("kind is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"context_id": contextID, "kind": kind}
	cur, err := c.entries.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	var out []memory.Entry
	for cur.Next(ctx) {
		var doc entryDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		entry, err := doc.toEntry()
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// fromEntry converts the entry to its storage document. Input and output are
// arbitrary JSON-like values, so they are wrapped in a single-field document
// before BSON encoding; top-level BSON requires a document, not a bare value.
func fromEntry(contextID, kind string, entry memory.Entry) (entryDocument, error) {
	doc := entryDocument{
		ContextID: contextID,
		Kind:      kind,
		Tool:      entry.Tool,
		Error:     entry.Error,
		Success:   entry.Success,
		Timestamp: entry.Timestamp.UTC(),
	}
	if entry.Input != nil {
		raw, err := bson.Marshal(bson.M{"v": entry.Input})
		if err != nil {
			return entryDocument{}, err
		}
		doc.Input = raw
	}
	if entry.Output != nil {
		raw, err := bson.Marshal(bson.M{"v": entry.Output})
		if err != nil {
			return entryDocument{}, err
		}
		doc.Output = raw
	}
	return doc, nil
}

func (doc entryDocument) toEntry() (memory.Entry, error) {
	entry := memory.Entry{
		Tool:      doc.Tool,
		Error:     doc.Error,
		Success:   doc.Success,
		Timestamp: doc.Timestamp,
	}
	var wrapper struct {
		V any `bson:"v"`
	}
	if len(doc.Input) > 0 {
		if err := bson.Unmarshal(doc.Input, &wrapper); err != nil {
			return memory.Entry{}, err
		}
		entry.Input = wrapper.V
	}
	if len(doc.Output) > 0 {
		wrapper.V = nil
		if err := bson.Unmarshal(doc.Output, &wrapper); err != nil {
			return memory.Entry{}, err
		}
		entry.Output = wrapper.V
	}
	return entry, nil
}

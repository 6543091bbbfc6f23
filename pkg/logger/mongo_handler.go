package logger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoQueueSize = 4096
	mongoBatchSize = 50
	mongoFlushTick = 2 * time.Second
)

// LogDocument is one record in the logs collection.
type LogDocument struct {
	Time      time.Time `bson:"time"`
	Level     string    `bson:"level"`
	Msg       string    `bson:"msg"`
	RequestID string    `bson:"request_id,omitempty"`
	Attrs     bson.M    `bson:"attrs,omitempty"`
}

// MongoHandler ships records to MongoDB in batches from a single goroutine.
// Handle never blocks: when the buffer is full the record is dropped and
// counted.
type MongoHandler struct {
	sink  *mongoSink
	level slog.Leveler
	attrs []slog.Attr
	group string
}

type mongoSink struct {
	col     *mongo.Collection
	client  *mongo.Client
	queue   chan LogDocument
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

// NewMongoHandler connects to uri and writes into db.collection. With a
// positive retention, a TTL index expires documents older than it.
func NewMongoHandler(ctx context.Context, uri, db, collection string, retention time.Duration) (*MongoHandler, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(4))
	if err != nil {
		return nil, fmt.Errorf("logger: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("logger: mongo ping: %w", err)
	}

	col := client.Database(db).Collection(collection)
	index := mongo.IndexModel{Keys: bson.D{{Key: "time", Value: 1}}}
	if retention > 0 {
		index.Options = options.Index().SetExpireAfterSeconds(int32(retention / time.Second))
	}
	if _, err := col.Indexes().CreateOne(ctx, index); err != nil {
		Warn("logger: could not index logs collection", "error", err)
	}

	s := &mongoSink{
		col:     col,
		client:  client,
		queue:   make(chan LogDocument, mongoQueueSize),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run()
	return &MongoHandler{sink: s, level: slog.LevelInfo}, nil
}

func (h *MongoHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level.Level() }

func (h *MongoHandler) Handle(_ context.Context, r slog.Record) error {
	select {
	case h.sink.queue <- h.document(r):
	default:
		h.sink.dropped.Add(1)
	}
	return nil
}

func (h *MongoHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	for _, a := range attrs {
		if h.group != "" && a.Key != "request_id" {
			a.Key = h.group + "." + a.Key
		}
		clone.attrs = append(clone.attrs[:len(clone.attrs):len(clone.attrs)], a)
	}
	return &clone
}

func (h *MongoHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group != "" {
		name = clone.group + "." + name
	}
	clone.group = name
	return &clone
}

// Dropped reports records discarded because the buffer was full.
func (h *MongoHandler) Dropped() int64 { return h.sink.dropped.Load() }

// Close flushes what is buffered and disconnects. Later calls are no-ops.
func (h *MongoHandler) Close(ctx context.Context) error {
	h.sink.once.Do(func() { close(h.sink.stop) })
	select {
	case <-h.sink.stopped:
	case <-ctx.Done():
	}
	return h.sink.client.Disconnect(ctx)
}

// document flattens r into a LogDocument. request_id is lifted to the top
// level; groups become dotted keys.
func (h *MongoHandler) document(r slog.Record) LogDocument {
	doc := LogDocument{Time: r.Time, Level: r.Level.String(), Msg: r.Message, Attrs: bson.M{}}

	var add func(prefix string, a slog.Attr)
	add = func(prefix string, a slog.Attr) {
		v := a.Value.Resolve()
		if a.Key == "request_id" && prefix == "" {
			doc.RequestID = v.String()
			return
		}
		key := a.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		if v.Kind() == slog.KindGroup {
			for _, ga := range v.Group() {
				add(key, ga)
			}
			return
		}
		if err, ok := v.Any().(error); ok {
			doc.Attrs[key] = err.Error()
			return
		}
		doc.Attrs[key] = v.Any()
	}

	for _, a := range h.attrs {
		if a.Key == "request_id" {
			doc.RequestID = a.Value.String()
			continue
		}
		add("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(h.group, a)
		return true
	})
	if len(doc.Attrs) == 0 {
		doc.Attrs = nil
	}
	return doc
}

func (s *mongoSink) run() {
	defer close(s.stopped)
	ticker := time.NewTicker(mongoFlushTick)
	defer ticker.Stop()

	batch := make([]any, 0, mongoBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = s.col.InsertMany(ctx, batch, options.InsertMany().SetOrdered(false))
		batch = batch[:0]
	}

	for {
		select {
		case doc := <-s.queue:
			batch = append(batch, doc)
			if len(batch) >= mongoBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stop:
			for {
				select {
				case doc := <-s.queue:
					batch = append(batch, doc)
					if len(batch) >= mongoBatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

// DefaultCollection holds ledger batches when no collection is configured
const DefaultCollection = "demand_ledger"

// Config holds MongoDB connection configuration
type Config struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// Connect opens a client and verifies it with a ping
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// entryDocument is the stored form of a ledger entry
type entryDocument struct {
	ID              string    `bson:"id"`
	Timestamp       time.Time `bson:"timestamp"`
	OrderNumber     string    `bson:"orderNumber"`
	Part            string    `bson:"part"`
	Site            string    `bson:"site"`
	Quantity        int64     `bson:"quantity"`
	QuantityRounded int64     `bson:"quantityRounded"`
}

// batchDocument holds the entries of one Append. A single insert keeps the
// batch all-or-nothing; seq orders batches within a partition.
type batchDocument struct {
	ID        string          `bson:"_id"`
	Partition string          `bson:"partition"`
	Seq       int64           `bson:"seq"`
	Orders    []string        `bson:"orders"`
	Entries   []entryDocument `bson:"entries"`
}

// LedgerStore keeps ledger batches in one collection, partition as a field.
// Per-partition sequence numbers live in a companion counters collection.
type LedgerStore struct {
	collection *mongo.Collection
	counters   *mongo.Collection
	logger     *zap.Logger
}

// Verify interface compliance
var _ repositories.LedgerRepository = (*LedgerStore)(nil)

// NewLedgerStore creates a store over collection in db and ensures its indexes
func NewLedgerStore(db *mongo.Database, collection string, logger *zap.Logger) *LedgerStore {
	if collection == "" {
		collection = DefaultCollection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LedgerStore{
		collection: db.Collection(collection),
		counters:   db.Collection(collection + "_counters"),
		logger:     logger,
	}
	s.ensureIndexes(context.Background())
	return s
}

func (s *LedgerStore) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "partition", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "partition", Value: 1}, {Key: "orders", Value: 1}}},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		s.logger.Warn("failed to create ledger indexes",
			zap.String("collection", s.collection.Name()),
			zap.Error(err))
	}
}

// nextSeq allocates the next batch sequence number for partition
func (s *LedgerStore) nextSeq(ctx context.Context, partition entities.Partition) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": partition.Key()},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence for %s: %w", partition.Key(), err)
	}
	return counter.Seq, nil
}

// Append stores entries as one batch document
func (s *LedgerStore) Append(ctx context.Context, partition entities.Partition, entries []*entities.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	seq, err := s.nextSeq(ctx, partition)
	if err != nil {
		return err
	}

	batch := batchDocument{
		ID:        uuid.New().String(),
		Partition: partition.Key(),
		Seq:       seq,
		Entries:   make([]entryDocument, 0, len(entries)),
	}
	seen := make(map[string]bool)
	for _, e := range entries {
		if !seen[e.OrderNumber] {
			seen[e.OrderNumber] = true
			batch.Orders = append(batch.Orders, e.OrderNumber)
		}
		batch.Entries = append(batch.Entries, entryDocument{
			ID:              e.ID,
			Timestamp:       e.Timestamp,
			OrderNumber:     e.OrderNumber,
			Part:            string(e.Part),
			Site:            e.Site,
			Quantity:        int64(e.Quantity),
			QuantityRounded: int64(e.QuantityRounded),
		})
	}

	if _, err := s.collection.InsertOne(ctx, batch); err != nil {
		return fmt.Errorf("failed to append to %s: %w", partition.Key(), err)
	}
	return nil
}

// Entries returns the entries of partition in append order
func (s *LedgerStore) Entries(ctx context.Context, partition entities.Partition) ([]*entities.LedgerEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"partition": partition.Key()}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", partition.Key(), err)
	}
	defer cursor.Close(ctx)

	var batches []batchDocument
	if err := cursor.All(ctx, &batches); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", partition.Key(), err)
	}

	var entries []*entities.LedgerEntry
	for _, b := range batches {
		for _, d := range b.Entries {
			entries = append(entries, &entities.LedgerEntry{
				ID:              d.ID,
				Timestamp:       d.Timestamp,
				OrderNumber:     d.OrderNumber,
				Part:            entities.PartNumber(d.Part),
				Site:            d.Site,
				Quantity:        entities.Quantity(d.Quantity),
				QuantityRounded: entities.Quantity(d.QuantityRounded),
			})
		}
	}
	if entries == nil {
		entries = []*entities.LedgerEntry{}
	}
	return entries, nil
}

// HasOrder reports whether orderNumber has entries in partition
func (s *LedgerStore) HasOrder(ctx context.Context, partition entities.Partition, orderNumber string) (bool, error) {
	filter := bson.M{"partition": partition.Key(), "orders": orderNumber}
	n, err := s.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check order %s in %s: %w", orderNumber, partition.Key(), err)
	}
	return n > 0, nil
}

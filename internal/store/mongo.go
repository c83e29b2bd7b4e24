package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/avetisov/lexstream/internal/model"
)

// MongoStore writes accepted documents to one collection and rejection
// audit records to a sibling "<collection>_rejected". Saves are upserts
// keyed on the document id, so re-running a source is idempotent.
type MongoStore struct {
	client   *mongo.Client
	accepted *mongo.Collection
	rejected *mongo.Collection
	log      *zap.Logger
}

// NewMongoStore connects, verifies the server is reachable and ensures the
// query indexes exist.
func NewMongoStore(ctx context.Context, cfg model.StorageConfig, logger *zap.Logger) (*MongoStore, error) {
	if cfg.MongoURI == "" {
		return nil, errors.New("storage.mongo_uri is required for the mongodb backend")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{
		client:   client,
		accepted: db.Collection(cfg.Collection),
		rejected: db.Collection(cfg.Collection + "_rejected"),
		log:      logger,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	logger.Debug("mongodb store open",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection))
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.accepted.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "quality_score", Value: -1}}},
		{Keys: bson.D{{Key: "source", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// SaveAccepted upserts the accepted document by id.
func (s *MongoStore) SaveAccepted(ctx context.Context, doc *model.Document) error {
	record := bson.M{
		"cleaned_text":      doc.CleanedText,
		"metadata":          doc.Metadata,
		"source":            doc.Source,
		"source_type":       doc.SourceType,
		"quality_score":     doc.QualityScore,
		"dedup_fingerprint": doc.Fingerprint,
	}
	return s.upsert(ctx, s.accepted, doc.ID, record)
}

// SaveRejected upserts the rejection audit record by id.
func (s *MongoStore) SaveRejected(ctx context.Context, doc *model.Document) error {
	record := bson.M{
		"source":           doc.Source,
		"rejection_reason": doc.RejectReason,
		"rejection_detail": doc.RejectDetail,
	}
	return s.upsert(ctx, s.rejected, doc.ID, record)
}

func (s *MongoStore) upsert(ctx context.Context, coll *mongo.Collection, id string, record bson.M) error {
	_, err := coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": record},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	return nil
}

// Close disconnects from the server.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

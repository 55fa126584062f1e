package storage

import (
	"context"
	"fmt"

	"github.com/johnwmail/npaste/config"
	"go.uber.org/zap"
)

// NewStore creates a storage backend based on the configuration
func NewStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (PasteStore, error) {
	switch cfg.StorageType {
	case config.StorageMongoDB:
		logger.Info("using MongoDB storage",
			zap.String("database", cfg.MongoDBDatabase),
			zap.String("collection", cfg.MongoDBCollection))
		return NewMongoStore(ctx, cfg.MongoDBURI, cfg.MongoDBDatabase, cfg.MongoDBCollection, cfg.StoreTimeout)

	case config.StorageDynamoDB:
		logger.Info("using DynamoDB storage",
			zap.String("table", cfg.DynamoDBTable),
			zap.String("region", cfg.DynamoDBRegion),
			zap.String("endpoint", cfg.DynamoDBEndpoint))
		return NewDynamoStore(ctx, cfg.DynamoDBTable, cfg.DynamoDBRegion, cfg.DynamoDBEndpoint, cfg.StoreTimeout)

	case config.StorageFilesystem:
		logger.Info("using filesystem storage", zap.String("data_dir", cfg.DataDir))
		return NewFilesystemStore(cfg.DataDir)

	case config.StorageMemory:
		logger.Warn("using in-memory storage; pastes are lost on restart")
		return NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/openjobspec/ojs-retry/internal/server"
	"github.com/openjobspec/ojs-retry/internal/state"
)

// openStore opens the attempt store selected by OJS_STORE. awsCfg is only
// called for the DynamoDB backend.
func openStore(ctx context.Context, cfg server.Config, awsCfg func() (aws.Config, error), logger *slog.Logger) (state.Store, error) {
	switch cfg.Store {
	case state.BackendMemory:
		logger.Warn("using in-memory attempt store; records are lost on restart")
		return state.NewMemoryStore(), nil

	case state.BackendDynamoDB:
		ac, err := awsCfg()
		if err != nil {
			return nil, fmt.Errorf("configure AWS: %w", err)
		}
		store := state.NewDynamoDBStore(dynamodb.NewFromConfig(ac), cfg.DynamoDBTable)
		if err := store.EnsureTable(ctx); err != nil {
			return nil, fmt.Errorf("ensure DynamoDB table: %w", err)
		}
		logger.Info("DynamoDB attempt store ready", "table", cfg.DynamoDBTable)
		return store, nil

	case state.BackendPostgres:
		store, err := state.OpenPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Info("PostgreSQL attempt store ready")
		return store, nil

	case state.BackendRedis:
		store, err := state.OpenRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		logger.Info("Redis attempt store ready")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

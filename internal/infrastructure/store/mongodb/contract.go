package mongodb

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"contractforge/internal/domain/entity"
	"contractforge/internal/domain/repository"
	"contractforge/internal/infrastructure/metrics"
)

type MongoContractRepo struct {
	col    *mongo.Collection
	logger *slog.Logger
}

func NewMongoContractRepo(db *mongo.Database, logger *slog.Logger) repository.ContractRepository {
	col := db.Collection("contracts")

	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{bson.E{Key: "created_at", Value: -1}}},
	})

	return &MongoContractRepo{
		col:    col,
		logger: logger,
	}
}

func (r *MongoContractRepo) Save(ctx context.Context, contract *entity.Contract) error {
	metrics.IncContractStoreOp("put")

	_, err := r.col.InsertOne(ctx, contract)
	if err != nil {
		metrics.IncError("mongo_contract_repo", "save_error")
		return err
	}
	return nil
}

func (r *MongoContractRepo) List(ctx context.Context) ([]*entity.Contract, error) {
	metrics.IncContractStoreOp("list")

	opts := options.Find().SetSort(bson.D{bson.E{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.D{}, opts)
	if err != nil {
		metrics.IncError("mongo_contract_repo", "list_error")
		return nil, err
	}
	defer func() {
		if err := cur.Close(ctx); err != nil {
			r.logger.Warn("close cursor failed", "err", err)
		}
	}()

	var contracts []*entity.Contract
	for cur.Next(ctx) {
		var c entity.Contract
		if err := cur.Decode(&c); err != nil {
			metrics.IncError("mongo_contract_repo", "list_decode_error")
			return nil, err
		}
		contracts = append(contracts, &c)
	}
	if err := cur.Err(); err != nil {
		metrics.IncError("mongo_contract_repo", "list_cursor_error")
		return nil, err
	}
	return contracts, nil
}

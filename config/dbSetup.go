package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Collections struct {
	Users        *mongo.Collection
	Properties   *mongo.Collection
	Appointments *mongo.Collection
}

func ConnectDB(ctx context.Context, uri string, logger *zap.Logger) (*mongo.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("MONGOURI not set in environment")
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("MongoDB ping failed: %w", err)
	}

	logger.Info("connected to MongoDB")
	return client, nil
}

func InitCollections(client *mongo.Client, dbName string) Collections {
	db := client.Database(dbName)
	return Collections{
		Users:        db.Collection("users"),
		Properties:   db.Collection("properties"),
		Appointments: db.Collection("appointments"),
	}
}

func CloseDBConnection(client *mongo.Client, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.Error("error closing database connection", zap.Error(err))
		return
	}
	logger.Info("MongoDB connection closed")
}

package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"

	"Chronicle/internal/shared/serverconfig"
	"Chronicle/modules/kit/logx"
)

const (
	appName        = "chronicle"
	defaultTimeout = 3 * time.Second
)

var (
	ErrNoURI      = errors.New("mongodb uri is empty")
	ErrNoDatabase = errors.New("mongodb database is empty")
)

// Options turns cfg into client options; the connect timeout doubles as
// the server selection timeout so a dead server fails fast.
func Options(cfg serverconfig.MongoDBConfig) (*options.ClientOptions, time.Duration, error) {
	if cfg.URI == "" {
		return nil, 0, ErrNoURI
	}
	if cfg.Database == "" {
		return nil, 0, ErrNoDatabase
	}
	timeout := time.Duration(cfg.ConnectTimeoutS) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	return opts, timeout, nil
}

// Open connects and pings the primary, returning the configured database.
func Open(ctx context.Context, cfg serverconfig.MongoDBConfig, l logx.Logger) (*mongo.Database, error) {
	opts, timeout, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = logx.Nop()
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	// the uri may carry credentials, so only the database is logged
	l.Info("mongodb connected", zap.String("database", cfg.Database), zap.Duration("timeout", timeout))
	return client.Database(cfg.Database), nil
}

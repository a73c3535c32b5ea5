// Package app assembles a session process from configuration: repository,
// actor runtime, generator client, id scheme and rules.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/game/reducer"
	"Chronicle/internal/generator"
	"Chronicle/internal/generator/grpcgen"
	"Chronicle/internal/idresolve"
	"Chronicle/internal/merge"
	sessionactor "Chronicle/internal/session/actor"
	"Chronicle/internal/session/actors"
	"Chronicle/internal/session/infra/persistence/memory"
	sessionmongo "Chronicle/internal/session/infra/persistence/mongodb"
	sessionmysql "Chronicle/internal/session/infra/persistence/mysql"
	sessionsqlite "Chronicle/internal/session/infra/persistence/sqlite"
	"Chronicle/internal/session/port"
	"Chronicle/internal/shared/infrastructure/db"
	sharedmongo "Chronicle/internal/shared/infrastructure/mongo"
	"Chronicle/internal/shared/logs"
	"Chronicle/internal/shared/serverconfig"
	transportgrpc "Chronicle/internal/shared/transport/grpc"
	"Chronicle/modules/kit/logx"
)

const (
	defaultAskTimeout       = 3 * time.Second
	defaultGeneratorTimeout = 90 * time.Second
)

// Repository opens the configured bundle store. close releases it.
func Repository(ctx context.Context, cfg *serverconfig.Config) (repo port.BundleRepository, closeFn func(), err error) {
	noop := func() {}
	switch cfg.Persistence.Driver {
	case "", "memory":
		return memory.NewSessionRepository(), noop, nil
	case "mongodb":
		mdb, err := sharedmongo.Open(ctx, cfg.MongoDB, logx.NewZapLogger(logs.Logger()))
		if err != nil {
			return nil, noop, err
		}
		closeFn = func() { _ = mdb.Client().Disconnect(context.Background()) }
		return sessionmongo.NewSessionRepository(mdb), closeFn, nil
	case "mysql":
		gdb, closeDB, err := db.Open(ctx, cfg.MySQL, logx.NewZapLogger(logs.Logger()))
		if err != nil {
			return nil, noop, err
		}
		r := sessionmysql.NewSessionRepo(gdb)
		if err := r.Migrate(ctx); err != nil {
			closeDB()
			return nil, noop, err
		}
		return r, closeDB, nil
	case "sqlite":
		path := cfg.SQLite.Path
		if path == "" {
			path = "chronicle.db"
		}
		r, err := sessionsqlite.Open(ctx, path)
		if err != nil {
			return nil, noop, err
		}
		return r, func() { _ = r.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unknown persistence driver %q", cfg.Persistence.Driver)
}

// Seed builds the opening bundle for a session nobody has saved yet: the
// configured setting and the local player.
func Seed(s serverconfig.SessionConfig) func(sessionID string) *entity.Bundle {
	return func(sessionID string) *entity.Bundle {
		state := entity.GameState{}
		if s.PlayerID != "" {
			state.Players = []entity.Character{{ID: entity.Str(s.PlayerID), Name: entity.Str(s.PlayerID), Level: entity.Int(1)}}
		}
		return entity.NewBundle(entity.SessionContext{SessionID: sessionID, Setting: s.Setting}, state)
	}
}

// Runtime starts the session actors over repo.
func Runtime(cfg *serverconfig.Config, repo port.BundleRepository) *sessionactor.Runtime {
	ask := time.Duration(cfg.Session.AskTimeoutMs) * time.Millisecond
	if ask <= 0 {
		ask = defaultAskTimeout
	}
	return sessionactor.NewRuntime(actors.Options{
		Repo:       repo,
		Seed:       Seed(cfg.Session),
		FlushEvery: int64(cfg.Persistence.FlushEveryMs),
	}, ask)
}

// IDGenerator picks the id scheme: "snowflake" or, by default, "uuid".
func IDGenerator(scheme string, node int64) (idresolve.IDGenerator, error) {
	switch scheme {
	case "", "uuid":
		return idresolve.UUIDGenerator{}, nil
	case "snowflake":
		return idresolve.NewSnowflakeGenerator(node)
	}
	return nil, fmt.Errorf("unknown id scheme %q", scheme)
}

// Reducer applies rules over the defaults; zero values keep the default.
func Reducer(r serverconfig.RulesConfig) *reducer.Reducer {
	cfg := reducer.DefaultConfig()
	if r.BonusPointsPerLevel > 0 {
		cfg.BonusPointsPerLevel = r.BonusPointsPerLevel
	}
	if r.SpentFraction > 0 {
		cfg.SpentFraction = r.SpentFraction
	}
	return reducer.New(merge.Default(), cfg)
}

// Generator dials the generator service. close tears the connection down.
func Generator(cfg serverconfig.GeneratorConfig) (generator.Generator, func(), error) {
	if cfg.Addr == "" {
		return nil, func() {}, fmt.Errorf("generator addr is empty")
	}
	conn, err := transportgrpc.DialGenerator(cfg.Addr)
	if err != nil {
		return nil, func() {}, err
	}
	timeout := time.Duration(cfg.TimeoutS) * time.Second
	if timeout <= 0 {
		timeout = defaultGeneratorTimeout
	}
	logs.Info("generator client ready", zap.String("addr", cfg.Addr), zap.Duration("timeout", timeout))
	return grpcgen.NewClient(conn, timeout), func() { _ = conn.Close() }, nil
}

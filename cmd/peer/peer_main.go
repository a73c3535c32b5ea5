package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"Chronicle/internal/app"
	"Chronicle/internal/generator"
	"Chronicle/internal/idresolve"
	"Chronicle/internal/netsync"
	"Chronicle/internal/session/interfaces/httpapi"
	"Chronicle/internal/shared/config"
	"Chronicle/internal/shared/logs"
	"Chronicle/internal/shared/serverconfig"
	transporthttp "Chronicle/internal/shared/transport/http"
	"Chronicle/internal/shared/transport/ws"
	"Chronicle/internal/turn"
	"Chronicle/modules/kit/logx"
)

const keepAlive = 15 * time.Second

func main() {
	cfgName := flag.String("config", "", "config file name or path")
	flag.Parse()

	serverconfig.Load(*cfgName)
	conf := serverconfig.Conf
	if err := logs.Init("peer", conf.Log); err != nil {
		panic(err)
	}
	defer func() { _ = logs.Sync() }()
	config.OnChange(func() {
		config.Read(func() { logs.SetLevel(serverconfig.Conf.Log.Level) })
	})
	logs.Info("conf", zap.Any("conf", conf))

	if conf.Peer.HostURL == "" || conf.Session.PlayerID == "" {
		logs.Fatal("peer.host_url and session.player_id are required")
	}
	baseLogger := logx.NewZapLogger(logs.Logger())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the host's bundle replaces ours on join, so nothing is persisted here
	conf.Persistence.Driver = "memory"
	repo, closeRepo, err := app.Repository(ctx, &conf)
	if err != nil {
		logs.Fatal("open repository failed", zap.Error(err))
	}
	defer closeRepo()
	rt := app.Runtime(&conf, repo)
	defer rt.Shutdown()
	store := rt.Session(conf.Session.ID)

	gen, closeGen, err := app.Generator(conf.Generator)
	if err != nil {
		logs.Fatal("dial generator failed", zap.Error(err))
	}
	defer closeGen()

	ids, err := app.IDGenerator(conf.Session.IDScheme, serverconfig.Secrets.SnowflakeNode)
	if err != nil {
		logs.Fatal("id generator", zap.Error(err))
	}

	peer := netsync.NewPeer(conf.Session.PlayerID, conf.Session.ID, store,
		netsync.WithPeerLogger(baseLogger),
		netsync.WithActionObserver(func(env netsync.Envelope) {
			logs.Info("coordinated action", zap.String("kind", string(env.Kind)), zap.ByteString("payload", env.Payload))
		}),
	)
	coord := turn.New(turn.Config{
		Role:                turn.RolePeer,
		SessionID:           conf.Session.ID,
		ModerationThreshold: conf.Rules.ModerationThreshold,
		ContextEvents:       conf.Rules.ContextEvents,
	}, store, gen,
		turn.WithLogger(baseLogger),
		turn.WithSubmitter(peer),
		turn.WithResolver(idresolve.New(ids, nil)),
		turn.WithReducer(app.Reducer(conf.Rules)),
		turn.WithProgress(func(p generator.Progress) {
			logs.Debug("generator progress", zap.String("stage", p.Stage), zap.String("text", p.Text))
		}),
	)
	peer.SetSyncer(coord)

	router := ws.NewRouter(baseLogger)
	netsync.Route(router, peer, netsync.PeerKinds...)
	router.Group("sys").Handle("error", func(_ context.Context, _ *ws.Conn, m *ws.Message) error {
		body := ws.ErrorBody{}
		if err := ws.BindJSON(m, &body); err != nil {
			return err
		}
		logs.Warn("host rejected a message", zap.String("name", body.Name), zap.String("code", body.Code), zap.String("msg", body.Msg))
		return nil
	})

	dial := time.Duration(conf.Peer.DialMs) * time.Millisecond
	if dial <= 0 {
		dial = 5 * time.Second
	}
	dialCtx, cancelDial := context.WithTimeout(ctx, dial)
	conn, err := ws.Dial(dialCtx, conf.Peer.HostURL, router, baseLogger)
	cancelDial()
	if err != nil {
		logs.Fatal("dial host failed", zap.String("url", conf.Peer.HostURL), zap.Error(err))
	}
	conn.KeepAlive(keepAlive)
	peer.Connect(netsync.OverWS(conn))
	if err := peer.Join(ctx, conf.Peer.JoinToken, conf.Session.PlayerID); err != nil {
		logs.Fatal("join failed", zap.Error(err))
	}

	admin := transporthttp.NewHttpServer(fmt.Sprintf("%s:%d", adminHost(conf.Admin.Host), conf.Admin.Port), nil, baseLogger)
	sync := httpapi.SyncFunc(func(ctx context.Context, _ string) error { return peer.RequestSync(ctx) })
	admin.Register("", httpapi.New(store, coord, sync, baseLogger))

	adminCtx, stopAdmin := context.WithCancel(context.Background())
	defer stopAdmin()
	errCh := make(chan error, 1)
	go func() { errCh <- admin.Run(adminCtx, 5*time.Second) }()
	logs.Info("joined session", zap.String("session_id", conf.Session.ID), zap.String("host", conf.Peer.HostURL))

	select {
	case <-ctx.Done():
		logs.Info("shutdown signal received")
	case <-conn.Done():
		logs.Warn("host connection closed")
	case err := <-errCh:
		logs.Error("admin server exited", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	coord.Cancel()
	if err := peer.Leave(shutdownCtx); err != nil {
		logs.Debug("leave not delivered", zap.Error(err))
	}
	conn.Close()
	stopAdmin()
}

func adminHost(h string) string {
	if h == "" {
		return "127.0.0.1"
	}
	return h
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"Chronicle/internal/app"
	"Chronicle/internal/generator"
	"Chronicle/internal/idresolve"
	"Chronicle/internal/netsync"
	"Chronicle/internal/session/interfaces/httpapi"
	"Chronicle/internal/shared/config"
	"Chronicle/internal/shared/logs"
	"Chronicle/internal/shared/security"
	"Chronicle/internal/shared/serverconfig"
	transporthttp "Chronicle/internal/shared/transport/http"
	"Chronicle/internal/shared/transport/ws"
	"Chronicle/internal/turn"
	"Chronicle/modules/kit/logx"
)

func addr(host string, port int) string {
	if host == "" {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func main() {
	cfgName := flag.String("config", "", "config file name or path")
	invite := flag.String("invite", "", "print a join token for this peer id and exit")
	flag.Parse()

	serverconfig.Load(*cfgName)
	conf := serverconfig.Conf
	if err := logs.Init("host", conf.Log); err != nil {
		panic(err)
	}
	defer func() { _ = logs.Sync() }()
	config.OnChange(func() {
		config.Read(func() { logs.SetLevel(serverconfig.Conf.Log.Level) })
	})
	logs.Info("conf", zap.Any("conf", conf))

	if *invite != "" {
		ttl := time.Duration(conf.Host.JoinTTLMin) * time.Minute
		token, err := security.AwardJoin(*invite, conf.Session.ID, ttl)
		if err != nil {
			logs.Fatal("award join token failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stdout, token)
		return
	}

	role := turn.Role(conf.Session.Role)
	if role == "" {
		role = turn.RoleSolo
	}
	if role == turn.RolePeer {
		logs.Fatal("this binary runs solo or host sessions; use the peer binary to join one")
	}
	baseLogger := logx.NewZapLogger(logs.Logger())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	opts := []turn.Option{
		turn.WithLogger(baseLogger),
		turn.WithResolver(idresolve.New(ids, nil)),
		turn.WithReducer(app.Reducer(conf.Rules)),
		turn.WithProgress(func(p generator.Progress) {
			logs.Debug("generator progress", zap.String("stage", p.Stage), zap.String("text", p.Text))
		}),
	}

	var host *netsync.Host
	if role == turn.RoleHost {
		host = netsync.NewHost(conf.Session.ID, conf.Session.PlayerID, store, netsync.WithHostLogger(baseLogger))
		opts = append(opts, turn.WithBroadcaster(host))
	}
	coord := turn.New(turn.Config{
		Role:                role,
		SessionID:           conf.Session.ID,
		ModerationThreshold: conf.Rules.ModerationThreshold,
		ContextEvents:       conf.Rules.ContextEvents,
	}, store, gen, opts...)

	var syncer httpapi.Syncer
	servers := make([]*transporthttp.Server, 0, 2)
	if host != nil {
		host.Attach(coord)
		syncer = host

		router := ws.NewRouter(baseLogger)
		netsync.Route(router, host, netsync.HostKinds...)
		wsServer := ws.NewServer(router, baseLogger, conf.Host.NeedSecret)
		wsServer.OnConnect(func(c *ws.Conn) {
			logs.Info("peer connected", zap.String("addr", c.Addr()))
		})
		hostServer := transporthttp.NewHttpServer(addr(conf.Host.Host, conf.Host.Port), nil, baseLogger)
		hostServer.Mount("/ws", wsServer)
		servers = append(servers, hostServer)
	}

	admin := transporthttp.NewHttpServer(addr(conf.Admin.Host, conf.Admin.Port), nil, baseLogger)
	admin.Register("", httpapi.New(store, coord, syncer, baseLogger))
	servers = append(servers, admin)

	serveCtx, stopServe := context.WithCancel(context.Background())
	defer stopServe()
	g, gctx := errgroup.WithContext(serveCtx)
	for _, s := range servers {
		g.Go(func() error { return s.Run(gctx, 10*time.Second) })
	}
	logs.Info("session started", zap.String("session_id", conf.Session.ID), zap.String("role", string(role)))

	select {
	case <-ctx.Done():
		logs.Info("shutdown signal received")
	case <-gctx.Done():
	}

	coord.Cancel()
	stopServe()
	if err := g.Wait(); err != nil {
		logs.Error("server exited", zap.Error(err))
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Flush(flushCtx); err != nil {
		logs.Error("flush session failed", zap.Error(err))
	}
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/generator"
	"Chronicle/internal/generator/grpcgen"
	"Chronicle/internal/shared/config"
	"Chronicle/internal/shared/logs"
	transportgrpc "Chronicle/internal/shared/transport/grpc"
	"Chronicle/modules/kit/logx"
)

// script replays a fixed list of patches, one per turn, wrapping around.
type script struct {
	patches []*entity.Patch
	next    atomic.Int64
}

func loadScript(path string) (*script, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	s := &script{}
	for i, item := range items {
		p, err := generator.DecodePatch(item)
		if err != nil {
			return nil, fmt.Errorf("script entry %d: %w", i, err)
		}
		s.patches = append(s.patches, p)
	}
	if len(s.patches) == 0 {
		return nil, fmt.Errorf("script %s has no patches", path)
	}
	return s, nil
}

func (s *script) generate(ctx context.Context, req generator.Request, progress generator.ProgressFunc) (*entity.Patch, error) {
	progress(generator.Progress{Stage: "scripted", Text: fmt.Sprintf("turn %d", req.Turn)})
	i := s.next.Add(1) - 1
	src := s.patches[int(i)%len(s.patches)]
	// the reducer takes ownership of what it is handed
	raw, err := generator.EncodePatch(src)
	if err != nil {
		return nil, err
	}
	return generator.DecodePatch(raw)
}

func echo(ctx context.Context, req generator.Request, progress generator.ProgressFunc) (*entity.Patch, error) {
	progress(generator.Progress{Stage: "echo", Text: req.Input.Text})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(50 * time.Millisecond):
	}
	return &entity.Patch{
		Narrative: []string{fmt.Sprintf("%s: %s", req.Input.ActorID, req.Input.Text)},
	}, nil
}

func main() {
	addr := flag.String("addr", "127.0.0.1:7100", "listen address")
	scriptPath := flag.String("script", "", "json array of patches to replay")
	level := flag.String("level", "info", "log level")
	flag.Parse()

	if err := logs.Init("genstub", config.LogConfig{Level: *level, Dev: true}); err != nil {
		panic(err)
	}
	defer func() { _ = logs.Sync() }()

	var gen generator.Generator = generator.Func(echo)
	if *scriptPath != "" {
		s, err := loadScript(*scriptPath)
		if err != nil {
			logs.Fatal("load script failed", zap.Error(err))
		}
		gen = generator.Func(s.generate)
		logs.Info("script loaded", zap.String("path", *scriptPath), zap.Int("patches", len(s.patches)))
	}

	server := transportgrpc.NewServer(logx.NewZapLogger(logs.Logger()))
	grpcgen.Register(server, gen)

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		logs.Fatal("listen failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logs.Info("generator stub started", zap.String("addr", *addr))
		errCh <- server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logs.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logs.Error("generator stub exited", zap.Error(err))
		}
	}

	stopCh := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopCh)
	}()
	select {
	case <-stopCh:
	case <-time.After(10 * time.Second):
		server.Stop()
	}
}

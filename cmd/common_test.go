package cmd

import (
	"testing"

	"Chronicle/internal/shared/logs"
	"Chronicle/internal/shared/serverconfig"

	"go.uber.org/zap"
)

func TestReadConfig(t *testing.T) {
	serverconfig.Load("")
	if serverconfig.Conf.Session.ID == "" || serverconfig.Conf.Host.Port == 0 {
		t.Fatalf("config not decoded: %+v", serverconfig.Conf)
	}
	cfg := serverconfig.Conf.Log
	cfg.FileDir = ""
	if err := logs.Init("TestReadConfig", cfg); err != nil {
		t.Fatalf("logs.Init: %v", err)
	}
	logs.Info("conf", zap.Any("conf", serverconfig.Conf))
}

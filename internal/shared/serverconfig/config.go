package serverconfig

import (
	"fmt"
	"os"

	"Chronicle/internal/shared/config"
	"Chronicle/internal/shared/security"

	"github.com/caarlos0/env/v11"
)

var (
	Conf    Config
	Secrets EnvSecrets
)

// Load 读取配置文件（cfgName 可为空），再用环境变量覆盖密钥类配置。
func Load(cfgName string) {
	config.Load(cfgName, &Conf)
	if err := ApplyEnv(&Conf, &Secrets); err != nil {
		panic(fmt.Errorf("read environment: %w", err))
	}
}

// ApplyEnv 解析环境变量中的密钥并覆盖到 cfg。
// 只在配置文件里出现的 join secret 会导出到环境变量，供 security 读取。
func ApplyEnv(cfg *Config, sec *EnvSecrets) error {
	if err := env.Parse(sec); err != nil {
		return err
	}
	if sec.MongoURI != "" {
		cfg.MongoDB.URI = sec.MongoURI
	}
	if sec.MySQLPassword != "" {
		cfg.MySQL.Password = sec.MySQLPassword
	}
	if sec.JoinSecret == "" && cfg.Host.JoinSecret != "" {
		sec.JoinSecret = cfg.Host.JoinSecret
		_ = os.Setenv(security.JoinSecretEnv, cfg.Host.JoinSecret)
	}
	return nil
}

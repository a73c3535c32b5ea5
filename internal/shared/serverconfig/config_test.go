package serverconfig

import (
	"os"
	"testing"

	"Chronicle/internal/shared/security"
)

func TestApplyEnvOverridesFileValues(t *testing.T) {
	t.Setenv("CHRONICLE_MONGO_URI", "mongodb://env:27017")
	t.Setenv("CHRONICLE_MYSQL_PASSWORD", "from-env")
	t.Setenv("SNOWFLAKE_NODE_ID", "7")
	t.Setenv(security.JoinSecretEnv, "env-secret")

	cfg := Config{
		MongoDB: MongoDBConfig{URI: "mongodb://file:27017"},
		MySQL:   MySQLConfig{Password: "from-file"},
		Host:    HostConfig{JoinSecret: "file-secret"},
	}
	var sec EnvSecrets
	if err := ApplyEnv(&cfg, &sec); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.MongoDB.URI != "mongodb://env:27017" || cfg.MySQL.Password != "from-env" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if sec.SnowflakeNode != 7 || sec.JoinSecret != "env-secret" {
		t.Fatalf("secrets = %+v", sec)
	}
}

func TestApplyEnvExportsFileJoinSecret(t *testing.T) {
	t.Setenv(security.JoinSecretEnv, "")
	cfg := Config{Host: HostConfig{JoinSecret: "file-secret"}}
	var sec EnvSecrets
	if err := ApplyEnv(&cfg, &sec); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if got := os.Getenv(security.JoinSecretEnv); got != "file-secret" {
		t.Fatalf("join secret not exported, got %q", got)
	}
	if sec.SnowflakeNode != 1 {
		t.Fatalf("default node = %d", sec.SnowflakeNode)
	}
}

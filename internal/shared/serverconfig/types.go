package serverconfig

import "Chronicle/internal/shared/config"

type Config struct {
	Log         config.LogConfig  `yaml:"log" mapstructure:"log"`
	Session     SessionConfig     `yaml:"session" mapstructure:"session"`
	Host        HostConfig        `yaml:"host" mapstructure:"host"`
	Peer        PeerConfig        `yaml:"peer" mapstructure:"peer"`
	Admin       HTTPServerConfig  `yaml:"admin" mapstructure:"admin"`
	Generator   GeneratorConfig   `yaml:"generator" mapstructure:"generator"`
	Rules       RulesConfig       `yaml:"rules" mapstructure:"rules"`
	Persistence PersistenceConfig `yaml:"persistence" mapstructure:"persistence"`
	MongoDB     MongoDBConfig     `yaml:"mongodb" mapstructure:"mongodb"`
	MySQL       MySQLConfig       `yaml:"mysql" mapstructure:"mysql"`
	SQLite      SQLiteConfig      `yaml:"sqlite" mapstructure:"sqlite"`
}

type SessionConfig struct {
	ID           string `yaml:"id" mapstructure:"id"`
	Role         string `yaml:"role" mapstructure:"role"` // solo/host/peer
	PlayerID     string `yaml:"player_id" mapstructure:"player_id"`
	Setting      string `yaml:"setting" mapstructure:"setting"`
	AskTimeoutMs int    `yaml:"ask_timeout_ms" mapstructure:"ask_timeout_ms"`
	IDScheme     string `yaml:"id_scheme" mapstructure:"id_scheme"` // uuid/snowflake
}

type HostConfig struct {
	Host       string `yaml:"host" mapstructure:"host"`
	Port       int    `yaml:"port" mapstructure:"port"`
	NeedSecret bool   `yaml:"need_secret" mapstructure:"need_secret"`
	JoinSecret string `yaml:"join_secret" mapstructure:"join_secret"`
	JoinTTLMin int    `yaml:"join_ttl_min" mapstructure:"join_ttl_min"`
}

type PeerConfig struct {
	HostURL   string `yaml:"host_url" mapstructure:"host_url"`
	JoinToken string `yaml:"join_token" mapstructure:"join_token"`
	DialMs    int    `yaml:"dial_ms" mapstructure:"dial_ms"`
}

type HTTPServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

type GeneratorConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	TimeoutS int    `yaml:"timeout_s" mapstructure:"timeout_s"`
}

type RulesConfig struct {
	ModerationThreshold float64 `yaml:"moderation_threshold" mapstructure:"moderation_threshold"`
	BonusPointsPerLevel int     `yaml:"bonus_points_per_level" mapstructure:"bonus_points_per_level"`
	SpentFraction       float64 `yaml:"spent_fraction" mapstructure:"spent_fraction"`
	ContextEvents       int     `yaml:"context_events" mapstructure:"context_events"`
}

type PersistenceConfig struct {
	Driver       string `yaml:"driver" mapstructure:"driver"` // memory/mongodb/mysql/sqlite
	FlushEveryMs int    `yaml:"flush_every_ms" mapstructure:"flush_every_ms"`
}

type MongoDBConfig struct {
	URI             string `yaml:"uri" mapstructure:"uri"`
	Database        string `yaml:"database" mapstructure:"database"`
	ConnectTimeoutS int    `yaml:"connect_timeout_s" mapstructure:"connect_timeout_s"`
}

type MySQLConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	DBName   string `yaml:"dbname" mapstructure:"dbname"`
	MaxIdle  int    `yaml:"max_idle" mapstructure:"max_idle"`
	MaxConn  int    `yaml:"max_conn" mapstructure:"max_conn"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// EnvSecrets 以环境变量为准：环境变量存在时，不使用配置文件里的值。
type EnvSecrets struct {
	JoinSecret    string `env:"CHRONICLE_JOIN_SECRET"`
	MongoURI      string `env:"CHRONICLE_MONGO_URI"`
	MySQLPassword string `env:"CHRONICLE_MYSQL_PASSWORD"`
	SnowflakeNode int64  `env:"SNOWFLAKE_NODE_ID" envDefault:"1"`
}

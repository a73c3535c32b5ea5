package config

import (
	"os"
	"path/filepath"
)

const defaultConfigRelPath = "configs/conf.yml"

// LogConfig 是所有进程共用的日志配置。
type LogConfig struct {
	FileDir    string `yaml:"file_dir" mapstructure:"file_dir"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"` // days
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
	Level      string `yaml:"level" mapstructure:"level"`
	Dev        bool   `yaml:"dev" mapstructure:"dev"`
}

// Load 把配置文件解码到 target，并持续监听变更（热更新）。
//
// 查找规则：
// - 显式传入 cfgName（绝对路径或相对工作目录）优先
// - 否则从工作目录向上查找 configs/conf.yml
func Load(cfgName string, target any) {
	load(Resolve(cfgName), target)
}

// Resolve 返回 Load 实际会读取的路径。
func Resolve(cfgName string) string {
	curDir, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	if cfgName != "" {
		if filepath.IsAbs(cfgName) {
			return cfgName
		}
		candidate := filepath.Join(curDir, cfgName)
		if fileExist(candidate) {
			return candidate
		}
	}
	return findConfigUpward(curDir)
}

func findConfigUpward(startDir string) string {
	dir := startDir
	for {
		candidate := filepath.Join(dir, defaultConfigRelPath)
		if fileExist(candidate) {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			panic("config file not exist, searched configs/conf.yml from: " + startDir)
		}
		dir = parent
	}
}

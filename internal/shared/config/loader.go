package config

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	mu       sync.RWMutex
	watchers []func()
)

// OnChange 注册热更新解码完成后的回调。
func OnChange(fn func()) {
	mu.Lock()
	watchers = append(watchers, fn)
	mu.Unlock()
}

// Read 在读锁内执行 fn（热更新持有写锁），保证读到完整的一份配置。
func Read(fn func()) {
	mu.RLock()
	defer mu.RUnlock()
	fn()
}

func load(configPath string, target any) {
	if !fileExist(configPath) {
		panic(fmt.Sprintf("config file not exist, configPath=%v", configPath))
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Println("config changed:", e.Name)
		mu.Lock()
		err := v.Unmarshal(target)
		fns := append([]func(){}, watchers...)
		mu.Unlock()
		if err != nil {
			log.Printf("config reload rejected: %v", err)
			return
		}
		for _, fn := range fns {
			fn()
		}
	})
	v.WatchConfig()

	if err := v.ReadInConfig(); err != nil {
		panic(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if err := v.Unmarshal(target); err != nil {
		panic(err)
	}
}

func fileExist(fileName string) bool {
	_, err := os.Stat(fileName)
	return err == nil
}

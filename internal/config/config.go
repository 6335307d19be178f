package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server     ServerConfig               `mapstructure:"server"`     // 服务器配置
	Log        LogConfig                  `mapstructure:"log"`        // 日志配置
	Store      StoreConfig                `mapstructure:"store"`      // 存储配置
	Paths      PathsConfig                `mapstructure:"paths"`      // 目录配置
	Ingest     IngestConfig               `mapstructure:"ingest"`     // 抓取配置
	Schedule   ScheduleConfig             `mapstructure:"schedule"`   // 定时调度配置
	Connectors map[string]ConnectorConfig `mapstructure:"connectors"` // 各 connector 独立配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug/info/warn/error
	Format string `mapstructure:"format"` // text/json
}

// StoreConfig 存储配置
type StoreConfig struct {
	Driver          string        `mapstructure:"driver"`            // sqlite/postgres
	DSN             string        `mapstructure:"dsn"`               // sqlite 为文件路径，postgres 为 URL
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
	LogSQL          bool          `mapstructure:"log_sql"`           // 打印 SQL
}

// PathsConfig 目录配置
type PathsConfig struct {
	RawDir    string `mapstructure:"raw_dir"`    // 原始快照根目录
	SeedDir   string `mapstructure:"seed_dir"`   // 随仓库分发的种子文件
	ExportDir string `mapstructure:"export_dir"` // 导出目录
}

// IngestConfig 抓取配置
type IngestConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"` // 单次 fetch 的总超时
}

// ScheduleConfig 定时调度配置
type ScheduleConfig struct {
	Cron              string   `mapstructure:"cron"`               // 为空则不启动调度
	EnabledConnectors []string `mapstructure:"enabled_connectors"` // 定时抓取的 connector 列表，为空表示全部
	YearOffset        int      `mapstructure:"year_offset"`        // 抓取年份 = 当前年 + offset
}

// ConnectorConfig 单个 connector 的独立配置
type ConnectorConfig struct {
	BaseURL    string `mapstructure:"base_url"`    // API基础地址
	Timeout    int    `mapstructure:"timeout"`     // 请求超时（秒）
	RetryCount int    `mapstructure:"retry_count"` // 重试次数
	AuthToken  string `mapstructure:"auth_token"`  // 通用认证Token
	Proxy      string `mapstructure:"proxy"`       // 代理地址
	SeedPath   string `mapstructure:"seed_path"`   // 本地种子文件，远程不可达时回退
	PreferSeed bool   `mapstructure:"prefer_seed"` // 直接使用本地种子（离线运行）
	TopN       int    `mapstructure:"top_n"`       // 覆盖 connector 默认的 N
	SeedDir    string `mapstructure:"-"`           // 由 paths.seed_dir 注入
}

// Default 无配置文件时的默认值
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Mode: "release"},
		Log:    LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{
			Driver:          "sqlite",
			DSN:             "data/sportsnations.db",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Hour,
		},
		Paths: PathsConfig{
			RawDir:    "data/raw",
			SeedDir:   "data/seeds",
			ExportDir: "data/exports",
		},
		Ingest:     IngestConfig{FetchTimeout: 2 * time.Minute},
		Connectors: map[string]ConnectorConfig{},
	}
}

// LoadConfig 加载配置文件（默认 ./config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig(path string) (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
	}
	setDefaults(v, Default())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	v.SetTypeByDefaultValue(true)
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if cfg.Connectors == nil {
		cfg.Connectors = map[string]ConnectorConfig{}
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(cfg)
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.max_open_conns", d.Store.MaxOpenConns)
	v.SetDefault("store.max_idle_conns", d.Store.MaxIdleConns)
	v.SetDefault("store.conn_max_lifetime", d.Store.ConnMaxLifetime)
	v.SetDefault("paths.raw_dir", d.Paths.RawDir)
	v.SetDefault("paths.seed_dir", d.Paths.SeedDir)
	v.SetDefault("paths.export_dir", d.Paths.ExportDir)
	v.SetDefault("ingest.fetch_timeout", d.Ingest.FetchTimeout)
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("FOOTBALL_DATA_TOKEN"); v != "" {
		c := cfg.Connectors["football_data"]
		c.AuthToken = v
		cfg.Connectors["football_data"] = c
	}
	// <CONNECTOR_ID>_PROXY，例如 WIKIDATA_SPORTS_PROXY
	for id, c := range cfg.Connectors {
		if v := os.Getenv(strings.ToUpper(id) + "_PROXY"); v != "" {
			c.Proxy = v
			cfg.Connectors[id] = c
		}
	}
	if v := os.Getenv("SPORTSNATIONS_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("SPORTSNATIONS_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
}

// Connector 取某个 connector 的配置（未配置时返回零值），并注入种子目录
func (c *Config) Connector(id string) ConnectorConfig {
	cc := c.Connectors[id]
	cc.SeedDir = c.Paths.SeedDir
	return cc
}

// GetGORMConfig 获取 GORM 配置
func (s *StoreConfig) GetGORMConfig() *gorm.Config {
	level := logger.Warn
	if s.LogSQL {
		level = logger.Info
	}
	return &gorm.Config{Logger: logger.Default.LogMode(level)}
}

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Log      LogConfig      `mapstructure:"log"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release / test
}

// DatabaseConfig 数据库配置
// Driver 为 mysql 时使用 MySQL 连接参数，为 sqlite 时使用 SQLitePath
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogSQL       bool   `mapstructure:"log_sql"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	LedgerEvents string `mapstructure:"ledger_events"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Output string `mapstructure:"output"` // stdout, file
	File   string `mapstructure:"file"`   // output 为 file 时的日志路径
}

// BusinessConfig 账本业务参数
type BusinessConfig struct {
	Owner               string `mapstructure:"owner"`                  // 初始管理员账户，仅在首次初始化时生效
	CustodyAccount      string `mapstructure:"custody_account"`        // 托管账户
	FeePercent          int64  `mapstructure:"fee_percent"`            // 初始平台费率
	MaxRetryCount       int    `mapstructure:"max_retry_count"`        // 消息最大投递次数
	RelayIntervalMillis int    `mapstructure:"relay_interval_millis"`  // 消息投递间隔
	DeadlineScanSeconds int    `mapstructure:"deadline_scan_seconds"`  // 截止通知扫描间隔
	LockTTLSeconds      int    `mapstructure:"lock_ttl_seconds"`       // 串行化锁过期时间
	LockRetryIntervalMs int    `mapstructure:"lock_retry_interval_ms"` // 获取锁重试间隔
	LockMaxRetries      int    `mapstructure:"lock_max_retries"`       // 获取锁最大重试次数
	WorkerID            int64  `mapstructure:"worker_id"`              // 雪花算法机器ID
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite_path", "crowdfund.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic.ledger_events", "crowdfund.ledger.events")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/crowdfund.log")
	v.SetDefault("business.owner", "admin")
	v.SetDefault("business.custody_account", "crowdfund:custody")
	v.SetDefault("business.fee_percent", 2)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.relay_interval_millis", 500)
	v.SetDefault("business.deadline_scan_seconds", 60)
	v.SetDefault("business.lock_ttl_seconds", 30)
	v.SetDefault("business.lock_retry_interval_ms", 50)
	v.SetDefault("business.lock_max_retries", 100)
	v.SetDefault("business.worker_id", 1)
}

// LoadConfig 加载配置文件
// 文件不存在时使用默认值，环境变量 CROWDFUND_* 覆盖同名配置项
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("crowdfund")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置项
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	if c.Business.Owner == "" {
		return fmt.Errorf("business.owner 不能为空")
	}
	if c.Business.CustodyAccount == "" {
		return fmt.Errorf("business.custody_account 不能为空")
	}
	if c.Business.CustodyAccount == c.Business.Owner {
		return fmt.Errorf("托管账户不能与管理员账户相同")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("启用 Kafka 时 kafka.brokers 不能为空")
	}
	return nil
}

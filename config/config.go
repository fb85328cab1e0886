package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Port   int    `mapstructure:"port"`
	Debug  bool   `mapstructure:"debug"`
	JWTKey string `mapstructure:"jwt_key"`

	Mongo    MongoConfig    `mapstructure:"mongo"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	FollowUp FollowUpConfig `mapstructure:"followup"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Origins []string `mapstructure:"origins"`
}

// MongoConfig MongoDB 连接配置
type MongoConfig struct {
	URI string `mapstructure:"uri"`
	DB  string `mapstructure:"db"`
}

// StorageConfig 存储驱动，mongo 或 memory
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// RedisConfig Redis 配置，Address 为空时使用进程内锁
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// FollowUpConfig 跟进周期配置
type FollowUpConfig struct {
	IntervalMonths     int           `mapstructure:"interval_months"`
	IntervalDays       int           `mapstructure:"interval_days"`
	DueHour            int           `mapstructure:"due_hour"`
	Timezone           string        `mapstructure:"timezone"`
	HookTimeout        time.Duration `mapstructure:"hook_timeout"`
	OverdueSyncEnabled bool          `mapstructure:"overdue_sync_enabled"`
	OverdueSyncHour    int           `mapstructure:"overdue_sync_hour"`
}

// Location 返回配置的时区，无效时回退到本地时区
func (f FollowUpConfig) Location() *time.Location {
	if f.Timezone == "" || strings.EqualFold(f.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("debug", false)
	v.SetDefault("jwt_key", "your-secret-key") // 实际环境应替换为安全密钥
	v.SetDefault("cors.origins", []string{"http://localhost:3001", "http://localhost:5173"})
	v.SetDefault("mongo.uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("mongo.db", "welfare")
	v.SetDefault("storage.driver", "mongo")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("followup.interval_months", 1)
	v.SetDefault("followup.interval_days", 0)
	v.SetDefault("followup.due_hour", 9)
	v.SetDefault("followup.timezone", "Local")
	v.SetDefault("followup.hook_timeout", 10*time.Second)
	v.SetDefault("followup.overdue_sync_enabled", true)
	v.SetDefault("followup.overdue_sync_hour", 1)
}

// LoadConfig 加载配置：.env -> config.yaml -> 环境变量
func LoadConfig() (*Config, error) {
	// .env 不存在时直接使用系统环境变量
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("加载.env失败: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// MONGO_URI 覆盖 mongo.uri
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	switch cfg.Storage.Driver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("未知的存储驱动: %s", cfg.Storage.Driver)
	}
	if cfg.FollowUp.IntervalMonths < 0 || cfg.FollowUp.IntervalDays < 0 ||
		cfg.FollowUp.IntervalMonths == 0 && cfg.FollowUp.IntervalDays == 0 {
		return fmt.Errorf("跟进周期必须大于0")
	}
	if cfg.FollowUp.DueHour < 0 || cfg.FollowUp.DueHour > 23 {
		return fmt.Errorf("due_hour 必须在 0-23 之间")
	}
	if cfg.FollowUp.HookTimeout <= 0 {
		return fmt.Errorf("hook_timeout 必须大于0")
	}
	return nil
}

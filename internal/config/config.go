package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Venue    VenueConfig
	Lock     LockConfig
	Operator OperatorConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port      string
	AppName   string `mapstructure:"app_name"`
	JWTSecret string `mapstructure:"jwt_secret"`

	// 首次启动时创建的 admin 密码，为空时随机生成并打印到日志
	AdminPassword string        `mapstructure:"admin_password"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	TimeZone    string
	TablePrefix string `mapstructure:"table_prefix"`
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// VenueConfig 交易场所配置
// Mode: paper 使用内存撮合，redis 通过 Redis 队列与外部网关通信
type VenueConfig struct {
	Mode            string
	CommandQueue    string        `mapstructure:"command_queue"`
	ReplyTimeout    time.Duration `mapstructure:"reply_timeout"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	Burst           int
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
	// paper 模式下的市场
	PaperMarkets []PaperMarketConfig `mapstructure:"paper_markets"`
}

type PaperMarketConfig struct {
	ID        string
	BaseMint  string `mapstructure:"base_mint"`
	QuoteMint string `mapstructure:"quote_mint"`
	Price     string // quote per base, 十进制字符串
	MaxBase   uint64 `mapstructure:"max_base"`
}

// LockConfig 执行周期的分布式锁 (多实例部署时开启)
type LockConfig struct {
	Distributed bool
	Expiry      time.Duration
	Tries       int
}

// OperatorConfig operate 命令使用的身份与调度
type OperatorConfig struct {
	Identity  string
	Schedule  string
	BatchSize int `mapstructure:"batch_size"`
}

type LogConfig struct {
	Level       string
	Encoding    string
	Development bool
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.app_name", "pockettrade")
	viper.SetDefault("server.token_ttl", 72*time.Hour)
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.timezone", "UTC")
	viper.SetDefault("redis.addr", "localhost:6379")

	viper.SetDefault("venue.mode", "paper")
	viper.SetDefault("venue.command_queue", "venue_cmd_queue")
	viper.SetDefault("venue.reply_timeout", 10*time.Second)
	viper.SetDefault("venue.rate_per_second", 20)
	viper.SetDefault("venue.burst", 5)
	viper.SetDefault("venue.breaker_failures", 5)
	viper.SetDefault("venue.breaker_timeout", 30*time.Second)

	viper.SetDefault("lock.expiry", 30*time.Second)
	viper.SetDefault("lock.tries", 3)

	viper.SetDefault("operator.schedule", "0 */5 * * * *")
	viper.SetDefault("operator.batch_size", 100)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.encoding", "json")
}

func LoadConfig() *Config {
	// .env 中的变量先加载到环境变量，再由 viper 读取
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")        // 在当前目录中查找配置
	viper.AddConfigPath("./config") // 在 config 目录中查找配置

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Error reading config file, %s", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	return &config
}

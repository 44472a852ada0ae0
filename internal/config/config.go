// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Session  SessionConfig  `mapstructure:"session"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储目标 MySQL 数据库的连接池参数与侧边栏默认值。
type MySQLConfig struct {
	MaxIdleConns           int                `mapstructure:"max_idle_conns"`
	MaxOpenConns           int                `mapstructure:"max_open_conns"`
	ConnMaxLifetimeMinutes int                `mapstructure:"conn_max_lifetime_minutes"`
	SampleRows             int                `mapstructure:"sample_rows"`
	Defaults               ConnectionDefaults `mapstructure:"defaults"`
}

// ConnectionDefaults 是连接表单的预填值，通常来自 .env。
type ConnectionDefaults struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时使用进程内会话存储。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	Provider       string              `mapstructure:"provider"`
	APIKey         string              `mapstructure:"api_key"`
	BaseURL        string              `mapstructure:"base_url"`
	Model          string              `mapstructure:"model"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"`
	Generation     LLMGenerationConfig `mapstructure:"generation"`
	Prompt         LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 允许覆盖两段提示模板（可选）。
type LLMPromptConfig struct {
	SQLTemplate    string `mapstructure:"sql_template"`
	AnswerTemplate string `mapstructure:"answer_template"`
}

// ChatConfig 存储对话流程的固定文案与上下文窗口。
type ChatConfig struct {
	FallbackText  string `mapstructure:"fallback_text"`
	WelcomeText   string `mapstructure:"welcome_text"`
	HistoryWindow int    `mapstructure:"history_window"`
}

// SessionConfig 存储会话令牌与过期回收的配置。
type SessionConfig struct {
	JWTSecret           string `mapstructure:"jwt_secret"`
	TokenExpireHours    int    `mapstructure:"token_expire_hours"`
	IdleTimeoutMinutes  int    `mapstructure:"idle_timeout_minutes"`
	ReapIntervalSeconds int    `mapstructure:"reap_interval_seconds"`
}

// KafkaConfig 存储 SQL 审计事件的 Kafka 配置。Brokers 为空时不发送。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// MinIOConfig 存储会话记录归档的配置。Endpoint 为空时不归档。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// Init 先加载 .env，再读取 YAML 配置文件并解析到 Conf 变量中。
func Init(configPath string) {
	// .env 可选，不存在时忽略
	_ = godotenv.Load()

	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}

// Load 读取配置文件（可为空）并叠加环境变量，返回解析后的配置。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	v.SetEnvPrefix("HOMESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("database.mysql.max_idle_conns", 2)
	v.SetDefault("database.mysql.max_open_conns", 5)
	v.SetDefault("database.mysql.conn_max_lifetime_minutes", 30)
	v.SetDefault("database.mysql.sample_rows", 3)
	v.SetDefault("database.mysql.defaults.host", "localhost")
	v.SetDefault("database.mysql.defaults.port", "3306")
	v.SetDefault("database.mysql.defaults.user", "root")
	v.SetDefault("database.mysql.defaults.password", "")
	v.SetDefault("database.mysql.defaults.database", "")
	v.SetDefault("database.redis.addr", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("llm.generation.temperature", 0)
	v.SetDefault("llm.generation.top_p", 0)
	v.SetDefault("llm.generation.max_tokens", 0)
	v.SetDefault("llm.prompt.sql_template", "")
	v.SetDefault("llm.prompt.answer_template", "")

	v.SetDefault("chat.fallback_text", "Sorry, I could not understand, try a different query.")
	v.SetDefault("chat.welcome_text", "Hello! I'm your assistant. Ask me anything about your Home inventory.")
	v.SetDefault("chat.history_window", 20)

	v.SetDefault("session.jwt_secret", "")
	v.SetDefault("session.token_expire_hours", 24)
	v.SetDefault("session.idle_timeout_minutes", 60)
	v.SetDefault("session.reap_interval_seconds", 60)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "homesync.query-audit")

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "homesync-transcripts")
}

// bindLegacyEnv 兼容常见的无前缀变量名（GROQ_API_KEY、DB_HOST 等）。
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("llm.api_key", "HOMESYNC_LLM_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("database.mysql.defaults.host", "HOMESYNC_DATABASE_MYSQL_DEFAULTS_HOST", "DB_HOST")
	_ = v.BindEnv("database.mysql.defaults.port", "HOMESYNC_DATABASE_MYSQL_DEFAULTS_PORT", "DB_PORT")
	_ = v.BindEnv("database.mysql.defaults.user", "HOMESYNC_DATABASE_MYSQL_DEFAULTS_USER", "DB_USER")
	_ = v.BindEnv("database.mysql.defaults.password", "HOMESYNC_DATABASE_MYSQL_DEFAULTS_PASSWORD", "DB_PASSWORD")
	_ = v.BindEnv("database.mysql.defaults.database", "HOMESYNC_DATABASE_MYSQL_DEFAULTS_DATABASE", "DB_NAME")
}

package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	TopicMessageSent string   `mapstructure:"topic_message_sent"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

type TypingConfig struct {
	IdleSeconds int `mapstructure:"idle_seconds"`
}

type Config struct {
	Mongo  MongoConfig  `mapstructure:"mongo"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Log    LogConfig    `mapstructure:"log"`
	Typing TypingConfig `mapstructure:"typing"`

	// derived
	TypingIdle time.Duration
}

// Load reads the config file at path with environment overrides
// (APP_MONGO_URI etc). A .env file next to the process is applied first if
// present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	if c.Mongo.Database == "" {
		c.Mongo.Database = "chatapp"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "chat"
	}
	if c.Kafka.TopicMessageSent == "" {
		c.Kafka.TopicMessageSent = "chat.message.sent"
	}
	if c.Typing.IdleSeconds == 0 {
		c.Typing.IdleSeconds = 2
	}
	c.TypingIdle = time.Duration(c.Typing.IdleSeconds) * time.Second
	return &c, nil
}

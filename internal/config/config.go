package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             int
	DatabaseURL      string
	LogLevel         string
	OllamaURL        string
	Model            string
	LLMTimeout       time.Duration
	MaxMessageLength int
	HistoryLimit     int
	NatsURL          string
	NatsToken        string
	RateLimitRPS     float64
	RateLimitBurst   int
}

var defaults = map[string]any{
	"port":               3000,
	"database_url":       "sqlite:./spur_chat.db",
	"log_level":          "info",
	"ollama_url":         "http://localhost:11434",
	"llm_model":          "mistral",
	"llm_timeout":        10 * time.Minute,
	"max_message_length": 2000,
	"history_limit":      10,
	"nats_url":           "",
	"nats_token":         "",
	"rate_limit_rps":     0.0,
	"rate_limit_burst":   5,
}

// Load reads configuration from the environment and, when CONFIG_FILE is set,
// from that file. Environment values win over the file. Values that do not
// parse fall back to their defaults.
func Load() (Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return Config{
		Port:             positiveInt(v, "port"),
		DatabaseURL:      nonEmpty(v, "database_url"),
		LogLevel:         nonEmpty(v, "log_level"),
		OllamaURL:        nonEmpty(v, "ollama_url"),
		Model:            nonEmpty(v, "llm_model"),
		LLMTimeout:       positiveDuration(v, "llm_timeout"),
		MaxMessageLength: positiveInt(v, "max_message_length"),
		HistoryLimit:     positiveInt(v, "history_limit"),
		NatsURL:          v.GetString("nats_url"),
		NatsToken:        v.GetString("nats_token"),
		RateLimitRPS:     max(v.GetFloat64("rate_limit_rps"), 0),
		RateLimitBurst:   positiveInt(v, "rate_limit_burst"),
	}, nil
}

func nonEmpty(v *viper.Viper, key string) string {
	if s := v.GetString(key); s != "" {
		return s
	}
	return defaults[key].(string)
}

func positiveInt(v *viper.Viper, key string) int {
	if n := v.GetInt(key); n > 0 {
		return n
	}
	return defaults[key].(int)
}

func positiveDuration(v *viper.Viper, key string) time.Duration {
	if d := v.GetDuration(key); d > 0 {
		return d
	}
	return defaults[key].(time.Duration)
}

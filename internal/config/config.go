package config

import (
	"os"
	"strings"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/rest"
)

// Load reads configuration from a YAML file with environment variable expansion.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes with environment variable expansion
func LoadFromBytes(data []byte) (Config, error) {
	var c Config
	expanded := os.ExpandEnv(string(data))
	if err := conf.LoadFromYamlBytes([]byte(expanded), &c); err != nil {
		return c, err
	}
	return c, nil
}

// parseBool parses a string as boolean with a default value.
// Accepts: "true", "1", "yes" as true; empty or other values return default.
func parseBool(s string, defaultVal bool) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return defaultVal
	}
	return s == "true" || s == "1" || s == "yes"
}

type Config struct {
	rest.RestConf
	Auth struct {
		AccessSecret string
		AccessExpire int64 `json:",default=86400"`
	}
	Database struct {
		SQLitePath string `json:",default=./data/chatkin.db"`
	}
	AI struct {
		// Provider selects the completion provider: "anthropic" or "openai".
		Provider        string `json:",default=anthropic"`
		AnthropicAPIKey string `json:",optional"`
		AnthropicModel  string `json:",default=claude-sonnet-4-5"`
		OpenAIAPIKey    string `json:",optional"`
		OpenAIModel     string `json:",default=gpt-4o"`
		MaxTokens       int    `json:",default=4096"`
		// MaxQueryRounds caps query-tool round trips per user message.
		MaxQueryRounds int `json:",default=5"`
	}
	Chat struct {
		// RecentWindow is how many trailing messages are sent verbatim;
		// anything older is covered by the rolling summary.
		RecentWindow int `json:",default=50"`
		// SummarizeSpec is the cron spec for the out-of-band summarization sweep.
		SummarizeSpec    string `json:",default=@every 5m"`
		SummarizeEnabled string `json:",default=true"`
	}
}

func (c Config) IsSummarizeEnabled() bool {
	return parseBool(c.Chat.SummarizeEnabled, true)
}

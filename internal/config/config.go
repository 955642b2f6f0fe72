package config

import (
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration. Defaults are overridden first by
// an optional YAML file (VOXNOTE_CONFIG), then by environment variables.
type Config struct {
	// Server
	Port int `yaml:"port"`

	// Persistence
	DataDir   string `yaml:"data_dir"`   // file backend root
	RedisAddr string `yaml:"redis_addr"` // non-empty selects the Redis backend

	// Gemini connection
	GeminiAPIURL string `yaml:"gemini_api_url"`
	GeminiAPIKey string `yaml:"gemini_api_key"`
	TextModel    string `yaml:"text_model"`
	TTSModel     string `yaml:"tts_model"`
	TTSVoice     string `yaml:"tts_voice"`

	// Playback
	TTSSampleRate int     `yaml:"tts_sample_rate"` // Hz of the synthesized PCM payload
	DefaultRate   float64 `yaml:"default_rate"`    // initial playback-rate multiplier
}

// Load reads configuration with sane defaults. A YAML file named by
// VOXNOTE_CONFIG is applied before env overrides, so env always wins.
func Load() Config {
	cfg := Config{
		Port:          8090,
		DataDir:       defaultDataDir(),
		GeminiAPIURL:  "https://generativelanguage.googleapis.com",
		TextModel:     "gemini-2.5-flash",
		TTSModel:      "gemini-2.5-flash-preview-tts",
		TTSVoice:      "Kore",
		TTSSampleRate: 24000,
		DefaultRate:   1.0,
	}

	if path := os.Getenv("VOXNOTE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("config file %s unreadable, using defaults: %v", path, err)
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Warnf("config file %s ignored, not valid YAML: %v", path, err)
		}
	}

	cfg.Port = envInt("VOXNOTE_PORT", cfg.Port)
	cfg.DataDir = envStr("VOXNOTE_DATA_DIR", cfg.DataDir)
	cfg.RedisAddr = envStr("VOXNOTE_REDIS_ADDR", cfg.RedisAddr)
	cfg.GeminiAPIURL = envStr("GEMINI_API_URL", cfg.GeminiAPIURL)
	cfg.GeminiAPIKey = envStr("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.TextModel = envStr("VOXNOTE_TEXT_MODEL", cfg.TextModel)
	cfg.TTSModel = envStr("VOXNOTE_TTS_MODEL", cfg.TTSModel)
	cfg.TTSVoice = envStr("VOXNOTE_TTS_VOICE", cfg.TTSVoice)
	cfg.TTSSampleRate = envInt("VOXNOTE_TTS_SAMPLE_RATE", cfg.TTSSampleRate)
	cfg.DefaultRate = envFloat("VOXNOTE_DEFAULT_RATE", cfg.DefaultRate)

	return cfg
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.voxnote"
	}
	return ".voxnote"
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	KBPath   string `yaml:"kb_path"`
	DataPath string `yaml:"data_path"`

	// Domains is the knowledge-base preference order: at equal similarity
	// the earlier domain wins. User-observable, keep it explicit.
	Domains []string `yaml:"domains"`

	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	ContextThreshold    float64 `yaml:"context_threshold"`
	TopK                int     `yaml:"top_k"`
	ContextN            int     `yaml:"context_n"`

	OllamaURL        string `yaml:"ollama_url"`
	OllamaGenModel   string `yaml:"ollama_gen_model"`
	OllamaEmbedModel string `yaml:"ollama_embed_model"`
	GenTimeoutSec    int    `yaml:"gen_timeout_sec"`

	EmbedCacheSize int `yaml:"embed_cache_size"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	AdminIDs []string `yaml:"admin_ids"`

	PausedText  string `yaml:"paused_text"`
	ApologyText string `yaml:"apology_text"`

	APIRateLimitRPS   float64 `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst int     `yaml:"api_rate_limit_burst"`
	APIMaxInFlight    int     `yaml:"api_max_in_flight"`

	WorkerMetricsPort string `yaml:"worker_metrics_port"`
}

const (
	DefaultPausedText  = "The assistant is paused for maintenance. Please try again later."
	DefaultApologyText = "Sorry, I can't answer right now. Please try again later or contact a moderator."
)

// Load reads configuration from an optional YAML file named by CONFIG_FILE,
// then overlays environment variables on top. Call Validate before use.
func Load() (Config, error) {
	cfg := Config{}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.APIPort = overlayEnv("API_PORT", cfg.APIPort, "8080")
	cfg.LogLevel = overlayEnv("LOG_LEVEL", cfg.LogLevel, "info")

	cfg.KBPath = overlayEnv("KB_PATH", cfg.KBPath, "./data/kb")
	cfg.DataPath = overlayEnv("DATA_PATH", cfg.DataPath, "./data/state")

	cfg.Domains = overlayEnvList("KB_DOMAINS", cfg.Domains, []string{"general", "technical"})

	cfg.SimilarityThreshold = overlayEnvFloat("SIMILARITY_THRESHOLD", cfg.SimilarityThreshold, 0.80)
	cfg.ContextThreshold = overlayEnvFloat("CONTEXT_THRESHOLD", cfg.ContextThreshold, 0.40)
	cfg.TopK = overlayEnvInt("TOP_K", cfg.TopK, 3)
	cfg.ContextN = overlayEnvInt("CONTEXT_N", cfg.ContextN, 3)

	cfg.OllamaURL = overlayEnv("OLLAMA_URL", cfg.OllamaURL, "http://localhost:11434")
	cfg.OllamaGenModel = overlayEnv("OLLAMA_GEN_MODEL", cfg.OllamaGenModel, "llama3.1:8b")
	cfg.OllamaEmbedModel = overlayEnv("OLLAMA_EMBED_MODEL", cfg.OllamaEmbedModel, "nomic-embed-text")
	cfg.GenTimeoutSec = overlayEnvInt("GEN_TIMEOUT_SECONDS", cfg.GenTimeoutSec, 30)

	cfg.EmbedCacheSize = overlayEnvInt("EMBED_CACHE_SIZE", cfg.EmbedCacheSize, 2048)

	cfg.NATSURL = overlayEnv("NATS_URL", cfg.NATSURL, "nats://localhost:4222")
	cfg.NATSSubject = overlayEnv("NATS_SUBJECT", cfg.NATSSubject, "kb.entries.upsert")

	cfg.AdminIDs = overlayEnvList("ADMIN_IDS", cfg.AdminIDs, nil)

	cfg.PausedText = overlayEnv("PAUSED_TEXT", cfg.PausedText, DefaultPausedText)
	cfg.ApologyText = overlayEnv("APOLOGY_TEXT", cfg.ApologyText, DefaultApologyText)

	cfg.APIRateLimitRPS = overlayEnvFloat("API_RATE_LIMIT_RPS", cfg.APIRateLimitRPS, 20)
	cfg.APIRateLimitBurst = overlayEnvInt("API_RATE_LIMIT_BURST", cfg.APIRateLimitBurst, 40)
	cfg.APIMaxInFlight = overlayEnvInt("API_MAX_IN_FLIGHT", cfg.APIMaxInFlight, 256)

	cfg.WorkerMetricsPort = overlayEnv("WORKER_METRICS_PORT", cfg.WorkerMetricsPort, "9090")

	return cfg, nil
}

// Validate fails fast on missing or out-of-range values so a misconfigured
// deployment never starts serving.
func (c Config) Validate() error {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1], got %v", c.SimilarityThreshold)
	}
	if c.ContextThreshold < 0 || c.ContextThreshold > c.SimilarityThreshold {
		return fmt.Errorf("context threshold must be in [0, %v], got %v", c.SimilarityThreshold, c.ContextThreshold)
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be >= 1, got %d", c.TopK)
	}
	if c.ContextN < 1 {
		return fmt.Errorf("context_n must be >= 1, got %d", c.ContextN)
	}
	if len(c.Domains) == 0 {
		return fmt.Errorf("at least one knowledge domain is required")
	}
	seen := make(map[string]struct{}, len(c.Domains))
	for _, d := range c.Domains {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("knowledge domain name must not be empty")
		}
		if _, dup := seen[d]; dup {
			return fmt.Errorf("duplicate knowledge domain %q", d)
		}
		seen[d] = struct{}{}
	}
	if strings.TrimSpace(c.KBPath) == "" {
		return fmt.Errorf("kb_path is required")
	}
	if strings.TrimSpace(c.DataPath) == "" {
		return fmt.Errorf("data_path is required")
	}
	if strings.TrimSpace(c.OllamaURL) == "" {
		return fmt.Errorf("ollama_url is required")
	}
	if c.GenTimeoutSec < 1 {
		return fmt.Errorf("gen_timeout_sec must be >= 1, got %d", c.GenTimeoutSec)
	}
	return nil
}

func overlayEnv(key, current, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if current != "" {
		return current
	}
	return fallback
}

func overlayEnvInt(key string, current, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if current != 0 {
		return current
	}
	return fallback
}

func overlayEnvFloat(key string, current, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	if current != 0 {
		return current
	}
	return fallback
}

func overlayEnvList(key string, current, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	if len(current) > 0 {
		return current
	}
	return fallback
}

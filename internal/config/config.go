// Package config loads the bot configuration from the environment, with an
// optional .env file for local runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultKnowledgeFile = "knowledge_base.json"
	defaultThreshold     = 0.7
	defaultCooldownSecs  = 10
	defaultTimeoutSecs   = 10
	defaultSystemPrompt  = "Ты эксперт по мониторингу онлайн-активности сотрудников и оценке рисков безопасности. " +
		"Отвечай кратко и по делу на русском языке."
)

// defaultTopicKeywords gates questions on topic when TOPIC_KEYWORDS is unset.
// Stems rather than full words, so case and inflection variants still match.
var defaultTopicKeywords = []string{
	"мониторинг", "активност", "безопасност", "риск", "угроз",
	"анализ", "nlp", "сотрудник", "слежен", "контрол",
}

// Config is the full configuration surface of the bot.
type Config struct {
	TelegramToken  string
	YandexAPIKey   string
	YandexFolderID string

	AdminIDs []int64

	KnowledgeFile       string
	SimilarityThreshold float64
	Cooldown            time.Duration
	RequestTimeout      time.Duration
	TopicKeywords       []string
	SystemPrompt        string
}

// Load reads the environment (after loading .env when present) and validates
// it. Missing required secrets are a single aggregated error; the process
// must not serve traffic without them.
func Load() (Config, error) {
	// .env is a convenience for local runs; absence is not an error.
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken:       os.Getenv("TELEGRAM_TOKEN"),
		YandexAPIKey:        os.Getenv("YANDEX_API_KEY"),
		YandexFolderID:      os.Getenv("YANDEX_FOLDER_ID"),
		KnowledgeFile:       envOr("KNOWLEDGE_BASE_FILE", defaultKnowledgeFile),
		SimilarityThreshold: envFloat("SIMILARITY_THRESHOLD", defaultThreshold),
		Cooldown:            time.Duration(envInt("MESSAGE_LIMIT_SECONDS", defaultCooldownSecs)) * time.Second,
		RequestTimeout:      time.Duration(envInt("REQUEST_TIMEOUT_SECONDS", defaultTimeoutSecs)) * time.Second,
		TopicKeywords:       envList("TOPIC_KEYWORDS", defaultTopicKeywords),
		SystemPrompt:        envOr("SYSTEM_PROMPT", defaultSystemPrompt),
	}

	var missing []string
	for _, v := range []struct {
		key string
		val string
	}{
		{"TELEGRAM_TOKEN", cfg.TelegramToken},
		{"YANDEX_API_KEY", cfg.YandexAPIKey},
		{"YANDEX_FOLDER_ID", cfg.YandexFolderID},
	} {
		if strings.TrimSpace(v.val) == "" {
			missing = append(missing, v.key)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: required environment variables are not set: %s", strings.Join(missing, ", "))
	}

	admins, err := parseAdminIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return Config{}, err
	}
	cfg.AdminIDs = admins

	return cfg, nil
}

func parseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: ADMIN_IDS entry %q is not an integer", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

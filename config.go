package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds all server configuration.
// Priority (lowest → highest): defaults < .env file < env vars < JSON config file < CLI flags.
type AppConfig struct {
	// Server
	DB        string  `json:"db"`
	Dev       bool    `json:"dev"`
	Addr      string  `json:"addr"`
	RateLimit float64 `json:"rate_limit"` // inbound socket events per second per connection, 0 for none
	RateBurst int     `json:"rate_burst"`

	// Logging (extended diagnostics, off by default)
	LogOutputDir string `json:"log_output_dir"`
	LogRequests  bool   `json:"log_requests"`
	LogState     bool   `json:"log_state"`
	LogDB        bool   `json:"log_db"`
	LogWS        bool   `json:"log_ws"`
	LogDebug     bool   `json:"log_debug"`

	// AI Storyteller
	StorytellerProvider    string `json:"storyteller_provider"`
	StorytellerModel       string `json:"storyteller_model"`
	StorytellerOllamaURL   string `json:"storyteller_ollama_url"`
	StorytellerURL         string `json:"storyteller_url"`
	StorytellerAPIKey      string `json:"storyteller_api_key"`
	StorytellerTemperature string `json:"storyteller_temperature"` // float 0-1 as string
	StorytellerThinking    string `json:"storyteller_thinking"`
	GroqAPIKey             string `json:"groq_api_key"`
}

// configField binds one setting to its three spellings: the JSON key, the
// upper-cased env var and the dashed CLI flag.
type configField struct {
	key   string
	usage string
	ptr   func(cfg *AppConfig) any
}

func (f configField) envName() string  { return strings.ToUpper(f.key) }
func (f configField) flagName() string { return strings.ReplaceAll(f.key, "_", "-") }

var configFields = []configField{
	{"db", "game-record store connection string", func(c *AppConfig) any { return &c.DB }},
	{"dev", "enable development mode (verbose logging, db dumps on error)", func(c *AppConfig) any { return &c.Dev }},
	{"addr", "HTTP listen address (e.g. :8080)", func(c *AppConfig) any { return &c.Addr }},
	{"rate_limit", "inbound socket events per second per connection, 0 disables the limit", func(c *AppConfig) any { return &c.RateLimit }},
	{"rate_burst", "burst size for the per-connection rate limit", func(c *AppConfig) any { return &c.RateBurst }},
	{"log_output_dir", "directory for extended log files", func(c *AppConfig) any { return &c.LogOutputDir }},
	{"log_requests", "log HTTP requests and responses", func(c *AppConfig) any { return &c.LogRequests }},
	{"log_state", "log room state after every change", func(c *AppConfig) any { return &c.LogState }},
	{"log_db", "log database dumps", func(c *AppConfig) any { return &c.LogDB }},
	{"log_ws", "log WebSocket messages", func(c *AppConfig) any { return &c.LogWS }},
	{"log_debug", "enable debug logging", func(c *AppConfig) any { return &c.LogDebug }},
	{"storyteller_provider", "AI storyteller provider (ollama|openai|claude|gemini|groq|openai-compatible)", func(c *AppConfig) any { return &c.StorytellerProvider }},
	{"storyteller_model", "AI storyteller model name", func(c *AppConfig) any { return &c.StorytellerModel }},
	{"storyteller_ollama_url", "Ollama server URL", func(c *AppConfig) any { return &c.StorytellerOllamaURL }},
	{"storyteller_url", "base URL for openai-compatible provider", func(c *AppConfig) any { return &c.StorytellerURL }},
	{"storyteller_api_key", "API key for openai-compatible provider", func(c *AppConfig) any { return &c.StorytellerAPIKey }},
	{"storyteller_temperature", "sampling temperature 0-1", func(c *AppConfig) any { return &c.StorytellerTemperature }},
	{"storyteller_thinking", "thinking mode: none|low|medium|high|auto", func(c *AppConfig) any { return &c.StorytellerThinking }},
	{"groq_api_key", "Groq API key", func(c *AppConfig) any { return &c.GroqAPIKey }},
}

func (cfg AppConfig) toLogConfig() LogConfig {
	return LogConfig{
		OutputDir:   cfg.LogOutputDir,
		LogRequests: cfg.LogRequests,
		LogState:    cfg.LogState,
		LogDB:       cfg.LogDB,
		LogWS:       cfg.LogWS,
		Debug:       cfg.LogDebug,
	}
}

func defaultConfig() AppConfig {
	return AppConfig{
		DB:                   "file::memory:?cache=shared",
		Addr:                 ":8080",
		RateLimit:            10,
		RateBurst:            20,
		StorytellerOllamaURL: "http://localhost:11434",
	}
}

// setFromString parses s into dst according to dst's type. Booleans accept 1, true and yes.
func setFromString(dst any, s string) error {
	switch p := dst.(type) {
	case *string:
		*p = s
	case *bool:
		*p = s == "1" || s == "true" || s == "yes"
	case *int:
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*p = n
	case *float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*p = f
	default:
		return fmt.Errorf("unsupported config type %T", dst)
	}
	return nil
}

// loadConfig builds a config by layering: defaults → .env → env vars → JSON config file.
// CLI flag overrides are applied separately by flagValues.applyTo after parsing.
func loadConfig(envPath, configPath string) AppConfig {
	cfg := defaultConfig()

	// .env never overrides variables already set in the process
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		log.Printf("Config: failed to load %s: %v", envPath, err)
	}

	for _, f := range configFields {
		v := os.Getenv(f.envName())
		if v == "" {
			continue
		}
		if err := setFromString(f.ptr(&cfg), v); err != nil {
			log.Printf("Config: invalid %s %q: %v", f.envName(), v, err)
		}
	}

	// only keys present in the file override env vars
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		var overlay map[string]json.RawMessage
		if err := json.Unmarshal(data, &overlay); err != nil {
			log.Printf("Config: failed to parse %s: %v", configPath, err)
			break
		}
		applyJSONOverlay(&cfg, overlay)
		log.Printf("Config: loaded from %s", configPath)
	case !os.IsNotExist(err):
		log.Printf("Config: failed to read %s: %v", configPath, err)
	}

	return cfg
}

func applyJSONOverlay(cfg *AppConfig, overlay map[string]json.RawMessage) {
	for _, f := range configFields {
		raw, ok := overlay[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, f.ptr(cfg)); err != nil {
			log.Printf("Config: bad value for %s: %v", f.key, err)
		}
	}
}

// flagValues holds what the command line parsed, before it is layered over the config
type flagValues struct {
	envPath    *string
	configPath *string
	parsed     *AppConfig
}

// registerFlags registers one CLI flag per config field plus -env and -config
func registerFlags(fs *flag.FlagSet) flagValues {
	fv := flagValues{
		envPath:    fs.String("env", ".env", "path to .env file"),
		configPath: fs.String("config", "config.json", "path to JSON config file"),
		parsed:     &AppConfig{},
	}
	for _, f := range configFields {
		switch p := f.ptr(fv.parsed).(type) {
		case *string:
			fs.StringVar(p, f.flagName(), "", f.usage)
		case *bool:
			fs.BoolVar(p, f.flagName(), false, f.usage)
		case *int:
			fs.IntVar(p, f.flagName(), 0, f.usage)
		case *float64:
			fs.Float64Var(p, f.flagName(), 0, f.usage)
		}
	}
	return fv
}

// applyTo overlays the flags that were explicitly passed; the rest leave cfg alone
func (fv flagValues) applyTo(fs *flag.FlagSet, cfg *AppConfig) {
	byFlag := make(map[string]configField, len(configFields))
	for _, f := range configFields {
		byFlag[f.flagName()] = f
	}
	fs.Visit(func(fl *flag.Flag) {
		f, ok := byFlag[fl.Name]
		if !ok {
			return
		}
		if err := setFromString(f.ptr(cfg), fl.Value.String()); err != nil {
			log.Printf("Config: flag -%s: %v", fl.Name, err)
		}
	})
}

// parseConfig parses the flags first so the .env and JSON paths can be chosen on the command line
func parseConfig(fs *flag.FlagSet, args []string) (AppConfig, error) {
	fv := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return AppConfig{}, err
	}
	cfg := loadConfig(*fv.envPath, *fv.configPath)
	fv.applyTo(fs, &cfg)
	return cfg, nil
}

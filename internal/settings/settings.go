// Package settings resolves the plugin's effective configuration from its
// persisted file, the host-provided settings store and the environment.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	FileName = "settings.json"

	DefaultModel      = "openai/gpt-3.5-turbo"
	DefaultDelimiter  = "||"
	DefaultPromptFile = "default.txt"

	// EditorPlaceholder is the shipped editor_path value. It marks the
	// editor as unconfigured; actions must refuse to launch it.
	EditorPlaceholder = "path/to/editor"

	// EnvAPIKey overrides the stored api_key when set and non-empty.
	EnvAPIKey      = "OPENROUTER_API_KEY"
	envAPIKeyAlias = "FLOW_OPENROUTER_API_KEY"

	envPrefix = "FLOW_OPENROUTER"
)

var logger = logrus.New()

// Settings is the effective configuration snapshot. Resolve builds a fresh
// value per request; nothing holds onto a shared mutable instance.
type Settings struct {
	APIKey           string `koanf:"api_key" json:"api_key,omitempty" desc:"OpenRouter API key, overridable via OPENROUTER_API_KEY" default:""`
	DefaultModel     string `koanf:"default_model" json:"default_model" desc:"model used for completions" default:"openai/gpt-3.5-turbo"`
	Delimiter        string `koanf:"delimiter" json:"delimiter" desc:"substring that submits the typed query" default:"||"`
	EditorPath       string `koanf:"editor_path" json:"editor_path" desc:"external editor executable for opening full answers" default:"path/to/editor"`
	SystemPromptFile string `koanf:"system_prompt_file" json:"system_prompt_file" desc:"prompt file under the prompts directory" default:"default.txt"`
}

func Defaults() *Settings {
	return &Settings{
		DefaultModel:     DefaultModel,
		Delimiter:        DefaultDelimiter,
		EditorPath:       EditorPlaceholder,
		SystemPromptFile: DefaultPromptFile,
	}
}

// Store reads and writes the persisted settings file under a directory.
type Store struct {
	path string
}

func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName)}
}

func (s *Store) Path() string {
	return s.path
}

// Load merges the persisted file over the defaults. Every failure path
// degrades to the defaults; the query path never sees an error from here.
func (s *Store) Load() *Settings {
	cfg := Defaults()

	defaults := koanf.New(".")
	if err := defaults.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		logger.WithError(err).Error("settings defaults could not be loaded")
		return cfg
	}

	if FileExists(s.path) {
		user := koanf.New(".")
		if err := user.Load(file.Provider(s.path), kjson.Parser()); err != nil {
			logger.WithError(err).WithField("path", s.path).Warn("settings file unreadable, using defaults")
		} else if err := defaults.Merge(user); err != nil {
			logger.WithError(err).Warn("settings merge failed, using defaults")
		}
	}

	if err := defaults.Unmarshal("", cfg); err != nil {
		logger.WithError(err).Error("settings unmarshal failed, using defaults")
		return Defaults()
	}

	normalize(cfg)

	return cfg
}

// Resolve returns the per-request snapshot: persisted file, overlaid with
// the host settings store, then the environment override for the API key.
func (s *Store) Resolve(host map[string]any) Settings {
	cfg := s.Load()
	applyHostStore(cfg, host)
	applyEnvOverride(cfg)
	normalize(cfg)

	return *cfg
}

// Save persists the settings file. The environment override is never
// written back; only what Load read plus the caller's changes.
func (s *Store) Save(cfg *Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// SetKey read-modify-writes a single persisted key. Only the keys mutated
// by plugin commands are accepted.
func (s *Store) SetKey(key, value string) error {
	cfg := s.Load()

	switch key {
	case "api_key":
		cfg.APIKey = value
	case "default_model":
		cfg.DefaultModel = value
	case "system_prompt_file":
		cfg.SystemPromptFile = value
	default:
		return fmt.Errorf("unknown settings key %q", key)
	}

	return s.Save(cfg)
}

// Empty strings must not erase the non-secret defaults. A blank api_key
// stays blank, that is the unconfigured state.
func normalize(cfg *Settings) {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = DefaultDelimiter
	}
	if cfg.SystemPromptFile == "" {
		cfg.SystemPromptFile = DefaultPromptFile
	}
}

func applyHostStore(cfg *Settings, host map[string]any) {
	if len(host) == 0 {
		return
	}

	set := func(key string, dst *string) {
		if v, ok := host[key].(string); ok && v != "" {
			*dst = v
		}
	}

	set("api_key", &cfg.APIKey)
	set("default_model", &cfg.DefaultModel)
	set("delimiter", &cfg.Delimiter)
	set("editor_path", &cfg.EditorPath)
	set("system_prompt_file", &cfg.SystemPromptFile)
}

func applyEnvOverride(cfg *Settings) {
	v := viper.New()
	if err := v.BindEnv("api_key", EnvAPIKey, envAPIKeyAlias); err != nil {
		logger.WithError(err).Warn("api key env binding failed")
		return
	}

	if key := v.GetString("api_key"); key != "" {
		cfg.APIKey = key
	}
}

// Dir resolves the plugin's configuration directory.
func Dir() string {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if dir := v.GetString("CONFIG_DIR"); dir != "" {
		return dir
	}

	return filepath.Join(xdg.ConfigHome, "flow-openrouter")
}

// LoadDotEnv loads <dir>/.env when present so the environment override can
// be provisioned from a file next to the settings.
func LoadDotEnv(dir string) {
	envFile := filepath.Join(dir, ".env")
	if !FileExists(envFile) {
		return
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.WithError(err).WithField("path", envFile).Warn("could not load .env")
	}
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

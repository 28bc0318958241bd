// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/lokalchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete lokalchat configuration.
type Config struct {
	Ollama  OllamaConfig  `toml:"ollama" json:"ollama"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	Chat    ChatConfig    `toml:"chat" json:"chat"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Log     LogConfig     `toml:"log" json:"log"`

	// path is the file the config was loaded from, empty for defaults.
	path string
}

// OllamaConfig contains the connection settings for the local Ollama server.
type OllamaConfig struct {
	// URL is the server base URL (without /api/...)
	URL string `toml:"url" json:"url"`
	// Model is the model name sent with every chat request
	Model string `toml:"model" json:"model"`
	// TimeoutSecs bounds a non-streaming chat request
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// MaxRetries for transient connection failures
	MaxRetries int `toml:"max_retries" json:"max_retries"`
	// RequestsPerSecond paces outgoing requests (0 = unlimited)
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
}

// StorageConfig contains persistence locations.
type StorageConfig struct {
	// DataDir holds every file lokalchat writes
	DataDir string `toml:"data_dir" json:"data_dir"`
	// MemoryFile stores the last composed prompt
	MemoryFile string `toml:"memory_file" json:"memory_file"`
	// RowsDir holds one variant file per deck row
	RowsDir string `toml:"rows_dir" json:"rows_dir"`
	// JournalFile is the SQLite exchange log
	JournalFile string `toml:"journal_file" json:"journal_file"`
	// SavePrompts persists rows and the composed prompt on every submit
	SavePrompts bool `toml:"save_prompts" json:"save_prompts"`
}

// ChatConfig contains conversation behaviour.
type ChatConfig struct {
	// ContextWindow is how many trailing messages the console sends
	ContextWindow int `toml:"context_window" json:"context_window"`
	// WrapWidth is the console reply wrap column
	WrapWidth int `toml:"wrap_width" json:"wrap_width"`
	// Markdown renders replies with glamour instead of plain wrapping
	Markdown bool `toml:"markdown" json:"markdown"`
	// TestMode answers locally without contacting Ollama
	TestMode bool `toml:"test_mode" json:"test_mode"`
}

// UIConfig contains terminal UI preferences.
type UIConfig struct {
	Theme        string `toml:"theme" json:"theme"`
	MaxTextLines int    `toml:"max_text_lines" json:"max_text_lines"`
	WordsPerLine int    `toml:"words_per_line" json:"words_per_line"`
	ShowHelp     bool   `toml:"show_help" json:"show_help"`
}

// LogConfig contains log output settings.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	// File defaults to <data_dir>/lokalchat.log
	File string `toml:"file" json:"file"`
}

// legacyConfig is the flat config.json layout of earlier releases.
type legacyConfig struct {
	OllamaURL *string `json:"OLLAMA_URL"`
	Model     *string `json:"MODEL"`
	FileName  *string `json:"FILE_NAME"`
	Test      *bool   `json:"TEST"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

const (
	DefaultOllamaURL  = "http://localhost:11434"
	DefaultModel      = "mistral"
	DefaultMemoryFile = "chat_memory.json"
)

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			URL:               DefaultOllamaURL,
			Model:             DefaultModel,
			TimeoutSecs:       120,
			MaxRetries:        2,
			RequestsPerSecond: 2,
		},
		Storage: StorageConfig{
			DataDir:     "~/.lokalchat",
			MemoryFile:  DefaultMemoryFile,
			RowsDir:     "Data",
			JournalFile: "journal.db",
			SavePrompts: true,
		},
		Chat: ChatConfig{
			ContextWindow: 10,
			WrapWidth:     80,
			Markdown:      true,
		},
		UI: UIConfig{
			Theme:        "dark",
			MaxTextLines: 20,
			WordsPerLine: 26,
			ShowHelp:     true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the lokalchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".lokalchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Path returns the file this config was loaded from, or "" for defaults.
func (c *Config) Path() string {
	return c.path
}

// DataDir returns the expanded data directory.
func (c *Config) DataDir() string {
	return util.ExpandHome(c.Storage.DataDir)
}

// MemoryPath returns the absolute path of the prompt memory file.
func (c *Config) MemoryPath() string {
	return c.resolve(c.Storage.MemoryFile)
}

// RowsPath returns the absolute path of the row variants directory.
func (c *Config) RowsPath() string {
	return c.resolve(c.Storage.RowsDir)
}

// JournalPath returns the absolute path of the SQLite journal.
func (c *Config) JournalPath() string {
	return c.resolve(c.Storage.JournalFile)
}

// SessionsPath returns the directory for console session transcripts.
func (c *Config) SessionsPath() string {
	return filepath.Join(c.DataDir(), "sessions")
}

// HistoryPath returns the console line-editor history file.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir(), "chat_history")
}

// LogPath returns the log file path.
func (c *Config) LogPath() string {
	if c.Log.File != "" {
		return util.ExpandHome(c.Log.File)
	}
	return filepath.Join(c.DataDir(), "lokalchat.log")
}

// resolve anchors relative storage paths in the data directory.
func (c *Config) resolve(p string) string {
	p = util.ExpandHome(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir(), p)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the standard locations.
// Tries TOML first, then JSON, then the legacy ./config.json, and falls back
// to defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	var candidates []string
	if p, err := ConfigPathTOML(); err == nil {
		candidates = append(candidates, p)
	}
	if p, err := ConfigPathJSON(); err == nil {
		candidates = append(candidates, p)
	}
	candidates = append(candidates, "config.json")

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return LoadFromPath(p)
		}
	}

	cfg := Default()
	return finish(cfg)
}

// LoadFromPath loads configuration from a specific file with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	var err error
	if strings.HasSuffix(path, ".json") {
		err = LoadJSON(cfg, path)
	} else {
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	cfg.path = path

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	cfg.Ollama.URL = NormalizeOllamaURL(cfg.Ollama.URL)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg. Both the sectioned layout and the
// flat legacy layout (OLLAMA_URL, MODEL, FILE_NAME, TEST) are accepted.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}

	var legacy legacyConfig
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	legacy.apply(cfg)
	return nil
}

func (l legacyConfig) apply(cfg *Config) {
	if l.OllamaURL != nil && *l.OllamaURL != "" {
		cfg.Ollama.URL = *l.OllamaURL
	}
	if l.Model != nil && *l.Model != "" {
		cfg.Ollama.Model = *l.Model
	}
	if l.FileName != nil && *l.FileName != "" {
		cfg.Storage.MemoryFile = *l.FileName
	}
	if l.Test != nil {
		cfg.Chat.TestMode = *l.Test
	}
}

// NormalizeOllamaURL strips a trailing API endpoint so that both
// "http://host:11434" and "http://host:11434/api/chat" address the server.
func NormalizeOllamaURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if i := strings.Index(u, "/api/"); i >= 0 {
		u = u[:i]
	}
	return strings.TrimSuffix(u, "/api")
}

// SetDefaults fills zero-value fields with their defaults.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Ollama.URL == "" {
		c.Ollama.URL = d.Ollama.URL
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = d.Ollama.Model
	}
	if c.Ollama.TimeoutSecs == 0 {
		c.Ollama.TimeoutSecs = d.Ollama.TimeoutSecs
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = d.Storage.DataDir
	}
	if c.Storage.MemoryFile == "" {
		c.Storage.MemoryFile = d.Storage.MemoryFile
	}
	if c.Storage.RowsDir == "" {
		c.Storage.RowsDir = d.Storage.RowsDir
	}
	if c.Storage.JournalFile == "" {
		c.Storage.JournalFile = d.Storage.JournalFile
	}
	if c.Chat.ContextWindow == 0 {
		c.Chat.ContextWindow = d.Chat.ContextWindow
	}
	if c.Chat.WrapWidth == 0 {
		c.Chat.WrapWidth = d.Chat.WrapWidth
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.MaxTextLines == 0 {
		c.UI.MaxTextLines = d.UI.MaxTextLines
	}
	if c.UI.WordsPerLine == 0 {
		c.UI.WordsPerLine = d.UI.WordsPerLine
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - LOKALCHAT_OLLAMA_URL: overrides ollama.url
//   - LOKALCHAT_MODEL: overrides ollama.model
//   - LOKALCHAT_TEST: "1" or "true" enables chat.test_mode
//   - LOKALCHAT_DATA_DIR: overrides storage.data_dir
//   - LOKALCHAT_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("LOKALCHAT_OLLAMA_URL"); v != "" {
		c.Ollama.URL = v
	}
	if v := os.Getenv("LOKALCHAT_MODEL"); v != "" {
		c.Ollama.Model = v
	}
	if v := os.Getenv("LOKALCHAT_TEST"); v != "" {
		c.Chat.TestMode = parseBool(v)
	}
	if v := os.Getenv("LOKALCHAT_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("LOKALCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes"
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to path, or to its load path, or to the
// default TOML location, in that order.
func (c *Config) Save(path string) error {
	if path == "" {
		path = c.path
	}
	if path == "" {
		p, err := ConfigPathTOML()
		if err != nil {
			return err
		}
		path = p
	}
	if strings.HasSuffix(path, ".json") {
		return util.WriteJSONFile(path, c, 0600)
	}
	return SaveTOML(c, path)
}

// SaveTOML writes the configuration as TOML with restrictive permissions.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# lokalchat configuration file\n\n")
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if strings.TrimSpace(c.Ollama.Model) == "" {
		errs = append(errs, ValidationError{Field: "ollama.model", Message: "must not be empty"})
	}
	if u, err := url.Parse(c.Ollama.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.Ollama.URL),
		})
	}
	if c.Ollama.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "ollama.timeout_secs", Message: "must not be negative"})
	}
	if c.Ollama.MaxRetries < 0 {
		errs = append(errs, ValidationError{Field: "ollama.max_retries", Message: "must not be negative"})
	}
	if c.Ollama.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{Field: "ollama.requests_per_second", Message: "must not be negative"})
	}
	if c.Chat.ContextWindow < 1 {
		errs = append(errs, ValidationError{Field: "chat.context_window", Message: "must be at least 1"})
	}
	if c.Chat.WrapWidth < 20 {
		errs = append(errs, ValidationError{Field: "chat.wrap_width", Message: "must be at least 20"})
	}
	if c.UI.MaxTextLines < 1 {
		errs = append(errs, ValidationError{Field: "ui.max_text_lines", Message: "must be at least 1"})
	}
	if c.UI.WordsPerLine < 1 {
		errs = append(errs, ValidationError{Field: "ui.words_per_line", Message: "must be at least 1"})
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, ValidationError{Field: "log.format", Message: "must be text or json"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ollama.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "ollama.model").
// String values are converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() || !field.CanInterface() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts snake_case or kebab-case to the Go field name.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(strings.ToLower(part[1:]))
	}
	return result.String()
}

func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %w", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %w", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns all configuration keys in dot notation.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		if !section.IsExported() {
			continue
		}
		prefix := section.Tag.Get("toml")
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, prefix+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the configuration as indented JSON for display.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

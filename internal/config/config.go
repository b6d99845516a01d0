// Package config loads the streamcribe CLI's configuration, layering
// flags over environment variables over an optional YAML file over
// built-in defaults, following the same SetDefaults/IsValid/FromEnv/
// ToMap/FromMap shape the teacher's config package uses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nullagree/streamcribe/internal/asrclient"
)

// LogLevel is a typed string enum mirroring the teacher's ModelSize/
// TranscribeAPI pattern: a plain string with an IsValid method rather
// than an iota, so it round-trips through env vars and YAML without a
// custom (un)marshaler.
type LogLevel string

const (
	LogLevelDebug    LogLevel = "debug"
	LogLevelInfo     LogLevel = "info"
	LogLevelWarning  LogLevel = "warning"
	LogLevelError    LogLevel = "error"
	LogLevelCritical LogLevel = "critical"
)

func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError, LogLevelCritical:
		return true
	default:
		return false
	}
}

// RenderKind selects the commit-event sink.
type RenderKind string

const (
	RenderKindTerminal  RenderKind = "terminal"
	RenderKindWebSocket RenderKind = "ws"
)

func (r RenderKind) IsValid() bool {
	switch r {
	case RenderKindTerminal, RenderKindWebSocket:
		return true
	default:
		return false
	}
}

const (
	ChannelsDefault       = 1
	SampleRateDefault     = 16000
	BlockDefault          = 1600
	EveryDefault          = time.Second
	MaxSegmentTimeDefault = 5 * time.Second
	MinCommonWordsDefault = 2
	MinRemainWordsDefault = 2
	TimeoutDefault        = 10 * time.Second
	BeamSizeDefault       = 5
	LogLevelDefault       = LogLevelInfo
	LogFileDefault        = "streamcribe.log"
	RenderKindDefault     = RenderKindTerminal
	RenderAddrDefault     = ":8765"
)

// Config is the fully resolved configuration for one `streamcribe
// listen` invocation.
type Config struct {
	URL string

	Channels   int
	SampleRate int
	Block      int
	File       string
	Play       bool

	Task           asrclient.Task
	Lang           string
	BeamSize       int
	Every          time.Duration
	MaxSegmentTime time.Duration
	MinCommonWords int
	MinRemainWords int
	Timeout        time.Duration

	LogLevel LogLevel
	LogFile  string

	Render     RenderKind
	RenderAddr string
}

// SetDefaults fills in any zero-valued field with its default.
func (cfg *Config) SetDefaults() {
	if cfg.Channels == 0 {
		cfg.Channels = ChannelsDefault
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = SampleRateDefault
	}
	if cfg.Block == 0 {
		cfg.Block = BlockDefault
	}
	if cfg.Task == "" {
		cfg.Task = asrclient.TaskTranscribe
	}
	if cfg.BeamSize == 0 {
		cfg.BeamSize = BeamSizeDefault
	}
	if cfg.Every == 0 {
		cfg.Every = EveryDefault
	}
	if cfg.MaxSegmentTime == 0 {
		cfg.MaxSegmentTime = MaxSegmentTimeDefault
	}
	if cfg.MinCommonWords == 0 {
		cfg.MinCommonWords = MinCommonWordsDefault
	}
	if cfg.MinRemainWords == 0 {
		cfg.MinRemainWords = MinRemainWordsDefault
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = TimeoutDefault
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogLevelDefault
	}
	if cfg.LogFile == "" {
		cfg.LogFile = LogFileDefault
	}
	if cfg.Render == "" {
		cfg.Render = RenderKindDefault
	}
	if cfg.RenderAddr == "" {
		cfg.RenderAddr = RenderAddrDefault
	}
}

// IsValid reports whether cfg can be used to start a session.
func (cfg Config) IsValid() error {
	if cfg.URL == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return fmt.Errorf("Channels should be 1 or 2")
	}
	if cfg.SampleRate < 1 {
		return fmt.Errorf("SampleRate should be >= 1")
	}
	if cfg.Block < 1 {
		return fmt.Errorf("Block should be >= 1")
	}
	if cfg.Task != asrclient.TaskTranscribe && cfg.Task != asrclient.TaskTranslate {
		return fmt.Errorf("Task value is not valid")
	}
	if cfg.Every <= 0 {
		return fmt.Errorf("Every should be positive")
	}
	if cfg.MaxSegmentTime <= 0 {
		return fmt.Errorf("MaxSegmentTime should be positive")
	}
	if cfg.MinCommonWords < 1 {
		return fmt.Errorf("MinCommonWords should be >= 1")
	}
	if cfg.MinRemainWords < 1 {
		return fmt.Errorf("MinRemainWords should be >= 1")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("Timeout should be positive")
	}
	if !cfg.LogLevel.IsValid() {
		return fmt.Errorf("LogLevel value is not valid")
	}
	if !cfg.Render.IsValid() {
		return fmt.Errorf("Render value is not valid")
	}
	if cfg.Render == RenderKindWebSocket && cfg.RenderAddr == "" {
		return fmt.Errorf("RenderAddr cannot be empty when Render is %q", RenderKindWebSocket)
	}
	if cfg.File == "" && cfg.Play {
		return fmt.Errorf("Play requires File to be set")
	}

	return nil
}

// ToMap flattens cfg for structured logging or a status endpoint.
func (cfg Config) ToMap() map[string]any {
	return map[string]any{
		"url":              cfg.URL,
		"channels":         cfg.Channels,
		"sample_rate":      cfg.SampleRate,
		"block":            cfg.Block,
		"file":             cfg.File,
		"play":             cfg.Play,
		"task":             string(cfg.Task),
		"lang":             cfg.Lang,
		"beam_size":        cfg.BeamSize,
		"every":            cfg.Every.String(),
		"max_segment_time": cfg.MaxSegmentTime.String(),
		"min_common_words": cfg.MinCommonWords,
		"min_remain_words": cfg.MinRemainWords,
		"timeout":          cfg.Timeout.String(),
		"log_level":        string(cfg.LogLevel),
		"log_file":         cfg.LogFile,
		"render":           string(cfg.Render),
		"render_addr":      cfg.RenderAddr,
	}
}

// yamlFile mirrors Config field-for-field but with plain types, since
// YAML has no notion of time.Duration or the typed string enums.
type yamlFile struct {
	URL string `yaml:"url"`

	Channels   int    `yaml:"channels"`
	SampleRate int    `yaml:"sample_rate"`
	Block      int    `yaml:"block"`
	File       string `yaml:"file"`
	Play       bool   `yaml:"play"`

	Task           string `yaml:"task"`
	Lang           string `yaml:"lang"`
	BeamSize       int    `yaml:"beam_size"`
	Every          string `yaml:"every"`
	MaxSegmentTime string `yaml:"max_segment_time"`
	MinCommonWords int    `yaml:"min_common_words"`
	MinRemainWords int    `yaml:"min_remain_words"`
	Timeout        string `yaml:"timeout"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	Render     string `yaml:"render"`
	RenderAddr string `yaml:"render_addr"`
}

// FromFile layers a YAML config file under the zero-valued fields of
// cfg: any field cfg already holds (set by a flag or env var) wins.
func (cfg *Config) FromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	if cfg.URL == "" {
		cfg.URL = f.URL
	}
	if cfg.Channels == 0 {
		cfg.Channels = f.Channels
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = f.SampleRate
	}
	if cfg.Block == 0 {
		cfg.Block = f.Block
	}
	if cfg.File == "" {
		cfg.File = f.File
	}
	if !cfg.Play {
		cfg.Play = f.Play
	}
	if cfg.Task == "" && f.Task != "" {
		cfg.Task = asrclient.Task(f.Task)
	}
	if cfg.Lang == "" {
		cfg.Lang = f.Lang
	}
	if cfg.BeamSize == 0 {
		cfg.BeamSize = f.BeamSize
	}
	if cfg.Every == 0 && f.Every != "" {
		d, err := time.ParseDuration(f.Every)
		if err != nil {
			return fmt.Errorf("config: invalid every: %w", err)
		}
		cfg.Every = d
	}
	if cfg.MaxSegmentTime == 0 && f.MaxSegmentTime != "" {
		d, err := time.ParseDuration(f.MaxSegmentTime)
		if err != nil {
			return fmt.Errorf("config: invalid max_segment_time: %w", err)
		}
		cfg.MaxSegmentTime = d
	}
	if cfg.MinCommonWords == 0 {
		cfg.MinCommonWords = f.MinCommonWords
	}
	if cfg.MinRemainWords == 0 {
		cfg.MinRemainWords = f.MinRemainWords
	}
	if cfg.Timeout == 0 && f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return fmt.Errorf("config: invalid timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if cfg.LogLevel == "" && f.LogLevel != "" {
		cfg.LogLevel = LogLevel(f.LogLevel)
	}
	if cfg.LogFile == "" {
		cfg.LogFile = f.LogFile
	}
	if cfg.Render == "" && f.Render != "" {
		cfg.Render = RenderKind(f.Render)
	}
	if cfg.RenderAddr == "" {
		cfg.RenderAddr = f.RenderAddr
	}

	return nil
}

// FromEnv layers STREAMCRIBE_*-prefixed environment variables under
// the zero-valued fields of cfg, the same precedence FromFile uses.
func (cfg *Config) FromEnv() error {
	if cfg.URL == "" {
		cfg.URL = os.Getenv("STREAMCRIBE_URL")
	}
	if cfg.Channels == 0 {
		cfg.Channels, _ = strconv.Atoi(os.Getenv("STREAMCRIBE_CHANNELS"))
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate, _ = strconv.Atoi(os.Getenv("STREAMCRIBE_SAMPLE_RATE"))
	}
	if cfg.Block == 0 {
		cfg.Block, _ = strconv.Atoi(os.Getenv("STREAMCRIBE_BLOCK"))
	}
	if cfg.File == "" {
		cfg.File = os.Getenv("STREAMCRIBE_FILE")
	}
	if !cfg.Play {
		cfg.Play, _ = strconv.ParseBool(os.Getenv("STREAMCRIBE_PLAY"))
	}
	if cfg.Task == "" {
		if v := os.Getenv("STREAMCRIBE_TASK"); v != "" {
			cfg.Task = asrclient.Task(v)
		}
	}
	if cfg.Lang == "" {
		cfg.Lang = os.Getenv("STREAMCRIBE_LANG")
	}
	if cfg.BeamSize == 0 {
		cfg.BeamSize, _ = strconv.Atoi(os.Getenv("STREAMCRIBE_BEAM"))
	}
	if cfg.Every == 0 {
		if v := os.Getenv("STREAMCRIBE_EVERY"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				cfg.Every = d
			}
		}
	}
	if cfg.LogLevel == "" {
		if v := os.Getenv("STREAMCRIBE_LOG"); v != "" {
			cfg.LogLevel = LogLevel(v)
		}
	}
	if cfg.LogFile == "" {
		cfg.LogFile = os.Getenv("STREAMCRIBE_LOG_FILE")
	}
	if cfg.Render == "" {
		if v := os.Getenv("STREAMCRIBE_RENDER"); v != "" {
			cfg.Render = RenderKind(v)
		}
	}
	if cfg.RenderAddr == "" {
		cfg.RenderAddr = os.Getenv("STREAMCRIBE_RENDER_ADDR")
	}

	return nil
}

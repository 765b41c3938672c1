// Package config loads the assistant settings file.
//
// The file is parsed with a YAML decoder, so the historical settings.json
// works unchanged alongside settings.yaml. A missing or unreadable file is
// not fatal: Load always returns a usable configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the assistant looks for its settings.
const DefaultPath = "settings.json"

type Config struct {
	DefaultScreenIndex int `yaml:"default_screen_index"`

	Chat   ChatConfig   `yaml:"chat"`
	Speech SpeechConfig `yaml:"speech"`
	Audio  AudioConfig  `yaml:"audio"`
	TTS    TTSConfig    `yaml:"tts"`
	Notify NotifyConfig `yaml:"notify"`
	IPC    IPCConfig    `yaml:"ipc"`
	Bus    BusConfig    `yaml:"bus"`
	Proxy  string       `yaml:"proxy"`
	Wake   WakeConfig   `yaml:"wake"`
	Exit   ExitConfig   `yaml:"exit"`
}

// ChatConfig selects the remote chat model.
type ChatConfig struct {
	Provider     string `yaml:"provider"` // "ollama" or "openai"
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url"`
	SystemPrompt string `yaml:"system_prompt"`
}

// SpeechConfig selects the speech recognizer.
type SpeechConfig struct {
	Provider  string `yaml:"provider"` // "google", "openai" or "whisper"
	Language  string `yaml:"language"`
	Model     string `yaml:"model"`      // openai model or whisper model path
	CredsFile string `yaml:"creds_file"` // google service account json
}

// AudioConfig describes the microphone stream and the capture loop.
type AudioConfig struct {
	SampleRate    int           `yaml:"sample_rate"`
	ChunkSize     int           `yaml:"chunk_size"` // frames per callback
	MaxSeconds    float64       `yaml:"max_seconds"`
	PollTimeout   time.Duration `yaml:"poll_timeout"`
	SilenceLimit  int           `yaml:"silence_limit"`
	QueueSize     int           `yaml:"queue_size"`
	Duck          bool          `yaml:"duck"`
	DuckFactor    float64       `yaml:"duck_factor"`
	DuckMinVolume int           `yaml:"duck_min_volume"`
}

type TTSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Voice   string `yaml:"voice"`
}

type NotifyConfig struct {
	Chime string `yaml:"chime"` // mp3 played before listening, empty disables
}

type IPCConfig struct {
	Socket string `yaml:"socket"`
}

type BusConfig struct {
	URL       string        `yaml:"url"`
	Shard     string        `yaml:"shard"`
	Reconnect time.Duration `yaml:"reconnect"` // 0 disables redial
}

type WakeConfig struct {
	Word       string        `yaml:"word"`
	MaxSeconds float64       `yaml:"max_seconds"`
	Retry      time.Duration `yaml:"retry"`
}

type ExitConfig struct {
	Delay time.Duration `yaml:"delay"`
}

// Default returns the configuration used when no settings file is present.
func Default() *Config {
	return &Config{
		DefaultScreenIndex: 0,
		Chat: ChatConfig{
			Provider: "ollama",
			Model:    "deepseek-v2",
		},
		Speech: SpeechConfig{
			Provider: "google",
			Language: "en-US",
		},
		Audio: AudioConfig{
			SampleRate:    16000,
			ChunkSize:     1024,
			MaxSeconds:    5,
			PollTimeout:   500 * time.Millisecond,
			SilenceLimit:  5,
			QueueSize:     256,
			DuckFactor:    0.3,
			DuckMinVolume: 10,
		},
		TTS: TTSConfig{
			Enabled: true,
			Voice:   "en",
		},
		IPC: IPCConfig{
			Socket: "/tmp/delta.sock",
		},
		Bus: BusConfig{
			Shard:     "delta",
			Reconnect: 2 * time.Second,
		},
		Wake: WakeConfig{
			Word:       "cortana",
			MaxSeconds: 5,
			Retry:      time.Second,
		},
		Exit: ExitConfig{
			Delay: 2 * time.Second,
		},
	}
}

// Load reads the settings at path. The returned config is never nil; on any
// error it holds the defaults and the error says why the file was ignored.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return Default(), fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes settings on top of the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the assistant cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.DefaultScreenIndex < 0 {
		errs = append(errs, fmt.Errorf("default_screen_index %d is negative", c.DefaultScreenIndex))
	}
	switch c.Chat.Provider {
	case "ollama", "openai":
	default:
		errs = append(errs, fmt.Errorf("chat.provider %q is invalid; valid values: ollama, openai", c.Chat.Provider))
	}
	switch c.Speech.Provider {
	case "google", "openai", "whisper":
	default:
		errs = append(errs, fmt.Errorf("speech.provider %q is invalid; valid values: google, openai, whisper", c.Speech.Provider))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive"))
	}
	if c.Audio.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_size must be positive"))
	}
	if c.Audio.MaxSeconds <= 0 {
		errs = append(errs, fmt.Errorf("audio.max_seconds must be positive"))
	}
	if c.Audio.DuckFactor < 0 || c.Audio.DuckFactor > 1 {
		errs = append(errs, fmt.Errorf("audio.duck_factor must be within [0, 1]"))
	}

	return errors.Join(errs...)
}

package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Storage StorageConfig `mapstructure:"storage"`
	Media   MediaConfig   `mapstructure:"media"`
	Signal  SignalConfig  `mapstructure:"signal"`
}

type BackendConfig struct {
	URL            string        `mapstructure:"url"`
	AnalyzeTimeout time.Duration `mapstructure:"analyze_timeout"`
	ChatTimeout    time.Duration `mapstructure:"chat_timeout"`
	VoiceTimeout   time.Duration `mapstructure:"voice_timeout"`
}

type StorageConfig struct {
	Path        string `mapstructure:"path"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type MediaConfig struct {
	Provider     string `mapstructure:"provider"`
	FFmpegPath   string `mapstructure:"ffmpeg_path"`
	CameraDevice string `mapstructure:"camera_device"`
	AudioDevice  string `mapstructure:"audio_device"`
}

type SignalConfig struct {
	HubURL     string `mapstructure:"hub_url"`
	ListenAddr string `mapstructure:"listen_addr"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.analyze_timeout", 30*time.Second)
	v.SetDefault("backend.chat_timeout", 20*time.Second)
	v.SetDefault("backend.voice_timeout", 45*time.Second)
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.use_in_memory", false)
	v.SetDefault("media.provider", "canned")
	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.camera_device", "/dev/video0")
	v.SetDefault("media.audio_device", "default")
	v.SetDefault("signal.listen_addr", ":8765")

	// Enable environment variable support
	v.AutomaticEnv()

	// The config file is optional; defaults plus environment cover the rest.
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if backendURL := v.GetString("NUTRILINK_BACKEND_URL"); backendURL != "" {
		config.Backend.URL = backendURL
	}

	if hubURL := v.GetString("NUTRILINK_HUB_URL"); hubURL != "" {
		config.Signal.HubURL = hubURL
	}

	return &config, nil
}

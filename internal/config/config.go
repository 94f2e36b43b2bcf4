package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SessionConfig selects and configures the export session store backend.
type SessionConfig struct {
	Store  string       `json:"store" mapstructure:"store"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
	DB     DBConfig     `json:"db" mapstructure:"db"`
	Redis  RedisConfig  `json:"redis" mapstructure:"redis"`
}

// SQLiteConfig holds settings for the embedded SQLite session store.
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// DBConfig holds PostgreSQL connection settings for the session store.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// RedisConfig holds Redis connection settings for the session store.
type RedisConfig struct {
	Address  string `json:"address" mapstructure:"address"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`
}

// RendererConfig holds settings for the headless renderer bridge. Width and
// Height are the surface viewport in pixels.
type RendererConfig struct {
	URL           string        `json:"url" mapstructure:"url"`
	Instances     int           `json:"instances" mapstructure:"instances"`
	Width         int           `json:"width" mapstructure:"width"`
	Height        int           `json:"height" mapstructure:"height"`
	SettleTimeout time.Duration `json:"settleTimeout" mapstructure:"settleTimeout"`
}

// ExportConfig holds frame export pipeline settings.
type ExportConfig struct {
	EncodeInflight int           `json:"encodeInflight" mapstructure:"encodeInflight"`
	SettleDelay    time.Duration `json:"settleDelay" mapstructure:"settleDelay"`
	FrameDir       string        `json:"frameDir" mapstructure:"frameDir"`
	Retention      time.Duration `json:"retention" mapstructure:"retention"`
}

// EncoderConfig holds video encoder settings.
type EncoderConfig struct {
	FFmpegPath string `json:"ffmpegPath" mapstructure:"ffmpegPath"`
	Codec      string `json:"codec" mapstructure:"codec"`
	Bitrate    string `json:"bitrate" mapstructure:"bitrate"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("http.listenAddr", ":8090")

	viper.SetDefault("renderer.url", "ws://localhost:9222/bridge")
	viper.SetDefault("renderer.instances", 4)
	viper.SetDefault("renderer.width", 1920)
	viper.SetDefault("renderer.height", 1080)
	viper.SetDefault("renderer.settleTimeout", "5s")

	viper.SetDefault("export.encodeInflight", 4)
	viper.SetDefault("export.settleDelay", "50ms")
	viper.SetDefault("export.frameDir", "./frames")
	viper.SetDefault("export.retention", "24h")

	viper.SetDefault("session.store", "memory")
	viper.SetDefault("session.sqlite.path", "./sessions.db")
	viper.SetDefault("session.db.host", "localhost")
	viper.SetDefault("session.db.port", "5432")
	viper.SetDefault("session.db.username", "postgres")
	viper.SetDefault("session.db.password", "postgres")
	viper.SetDefault("session.db.database", "osmstudio")
	viper.SetDefault("session.redis.address", "localhost:6379")
	viper.SetDefault("session.redis.password", "")
	viper.SetDefault("session.redis.db", 0)

	viper.SetDefault("encoder.ffmpegPath", "ffmpeg")
	viper.SetDefault("encoder.codec", "libx264")
	viper.SetDefault("encoder.bitrate", "8M")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "osmstudio-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetConfigName("osmstudio.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSessionConfig returns the session store configuration.
func GetSessionConfig() SessionConfig {
	return SessionConfig{
		Store: viper.GetString("session.store"),
		SQLite: SQLiteConfig{
			Path: viper.GetString("session.sqlite.path"),
		},
		DB: DBConfig{
			Host:     viper.GetString("session.db.host"),
			Port:     viper.GetString("session.db.port"),
			Username: viper.GetString("session.db.username"),
			Password: viper.GetString("session.db.password"),
			Database: viper.GetString("session.db.database"),
		},
		Redis: RedisConfig{
			Address:  viper.GetString("session.redis.address"),
			Password: viper.GetString("session.redis.password"),
			DB:       viper.GetInt("session.redis.db"),
		},
	}
}

// GetRendererConfig returns the renderer bridge configuration.
func GetRendererConfig() RendererConfig {
	return RendererConfig{
		URL:           viper.GetString("renderer.url"),
		Instances:     viper.GetInt("renderer.instances"),
		Width:         viper.GetInt("renderer.width"),
		Height:        viper.GetInt("renderer.height"),
		SettleTimeout: viper.GetDuration("renderer.settleTimeout"),
	}
}

// GetExportConfig returns the frame export pipeline configuration.
func GetExportConfig() ExportConfig {
	return ExportConfig{
		EncodeInflight: viper.GetInt("export.encodeInflight"),
		SettleDelay:    viper.GetDuration("export.settleDelay"),
		FrameDir:       viper.GetString("export.frameDir"),
		Retention:      viper.GetDuration("export.retention"),
	}
}

// GetEncoderConfig returns the video encoder configuration.
func GetEncoderConfig() EncoderConfig {
	return EncoderConfig{
		FFmpegPath: viper.GetString("encoder.ffmpegPath"),
		Codec:      viper.GetString("encoder.codec"),
		Bitrate:    viper.GetString("encoder.bitrate"),
	}
}

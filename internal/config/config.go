package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Camera   CameraConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Delivery DeliveryConfig
	Telegram TelegramConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

// CameraConfig carries the identity the cameras present through their
// digest headers.
type CameraConfig struct {
	Username string
	Password string
}

type StorageConfig struct {
	ImagesDir  string
	CursorFile string
}

type DatabaseConfig struct {
	DSN string
}

type DeliveryConfig struct {
	// ConfidenceThreshold is on the camera's integer scale (0-100).
	ConfidenceThreshold int
	PollIntervalSeconds int
	RecipientChatIDs    []int64
}

type TelegramConfig struct {
	BotToken string
}

type AuthConfig struct {
	JWTSecret string
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c DeliveryConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Load reads configuration from an optional config.yaml in the working
// directory, overridable through SAFEWHEELS_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 7070)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("storage.images_dir", "vehicle_images")
	v.SetDefault("storage.cursor_file", "last_delivered_id")
	v.SetDefault("delivery.confidence_threshold", 80)
	v.SetDefault("delivery.poll_interval_seconds", 15)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SAFEWHEELS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	chatIDs, err := parseChatIDs(v.GetStringSlice("delivery.recipient_chat_ids"))
	if err != nil {
		return nil, fmt.Errorf("delivery.recipient_chat_ids: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        v.GetString("server.host"),
			Port:        v.GetInt("server.port"),
			CORSOrigins: v.GetStringSlice("server.cors_origins"),
		},
		Camera: CameraConfig{
			Username: v.GetString("camera.username"),
			Password: v.GetString("camera.password"),
		},
		Storage: StorageConfig{
			ImagesDir:  v.GetString("storage.images_dir"),
			CursorFile: v.GetString("storage.cursor_file"),
		},
		Database: DatabaseConfig{
			DSN: v.GetString("database.dsn"),
		},
		Delivery: DeliveryConfig{
			ConfidenceThreshold: v.GetInt("delivery.confidence_threshold"),
			PollIntervalSeconds: v.GetInt("delivery.poll_interval_seconds"),
			RecipientChatIDs:    chatIDs,
		},
		Telegram: TelegramConfig{
			BotToken: v.GetString("telegram.bot_token"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	if cfg.Camera.Username == "" {
		return nil, fmt.Errorf("camera.username is required")
	}
	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("telegram.bot_token is required")
	}
	if len(cfg.Delivery.RecipientChatIDs) == 0 {
		return nil, fmt.Errorf("delivery.recipient_chat_ids is required")
	}

	return cfg, nil
}

func parseChatIDs(raw []string) ([]int64, error) {
	var ids []int64
	for _, s := range raw {
		// Env vars arrive as a single comma-separated value.
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid chat id %q: %w", part, err)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ledger-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	TransferExchange           string `mapstructure:"TRANSFER_EXCHANGE"`
	TransferQueue              string `mapstructure:"TRANSFER_QUEUE"`
	JWTSecret                  string `mapstructure:"JWT_SECRET"`
	TokenTTLMinutes            int    `mapstructure:"TOKEN_TTL_MINUTES"`
	SignupBonus                int64  `mapstructure:"SIGNUP_BONUS"`
	TransferRateLimitPerMinute int    `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`
	PublishTimeoutSeconds      int    `mapstructure:"PUBLISH_TIMEOUT_SECONDS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("TRANSFER_EXCHANGE", "lumenbank.transfers")
	viper.SetDefault("TRANSFER_QUEUE", "ledger_service.transfer_requests")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "lumenbank:rate_limit")
	viper.SetDefault("TOKEN_TTL_MINUTES", 60)
	// Starting balance of the first account created at signup, in minor units.
	viper.SetDefault("SIGNUP_BONUS", 10000)
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("PUBLISH_TIMEOUT_SECONDS", 5)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("TRANSFER_EXCHANGE")
	_ = viper.BindEnv("TRANSFER_QUEUE")
	_ = viper.BindEnv("JWT_SECRET", "JWT_SECRET", "LEDGER_SERVICE_JWT_SECRET")
	_ = viper.BindEnv("TOKEN_TTL_MINUTES")
	_ = viper.BindEnv("SIGNUP_BONUS")
	_ = viper.BindEnv("TRANSFER_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("PUBLISH_TIMEOUT_SECONDS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.JWTSecret) == "" {
		config.JWTSecret = strings.TrimSpace(os.Getenv("LEDGER_SERVICE_JWT_SECRET"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "lumenbank:rate_limit"
	}

	if config.SignupBonus < 0 {
		log.Printf("level=warn component=config msg=\"negative signup bonus configured; coercing to zero\" signup_bonus=%d", config.SignupBonus)
		config.SignupBonus = 0
	}
	if config.TokenTTLMinutes <= 0 {
		config.TokenTTLMinutes = 60
	}
	if config.TransferRateLimitPerMinute < 0 {
		config.TransferRateLimitPerMinute = 0
	}
	if config.PublishTimeoutSeconds <= 0 {
		config.PublishTimeoutSeconds = 5
	}

	return
}

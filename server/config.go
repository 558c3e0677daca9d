package main

import (
	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	Port        string `mapstructure:"PORT"`
	BGGBaseURL  string `mapstructure:"BGG_BASE_URL"`
	Env         string `mapstructure:"SHELF_ENV"`
}

// loadConfig reads configuration from a .env file and the environment.
func loadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.SetDefault("PORT", "8080")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Infow("no .env file found, using environment variables only")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

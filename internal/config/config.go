package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel          string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	GamePort          string `yaml:"game-port" env:"GAME_PORT" env-default:"7777"`
	RequireAuth       bool   `yaml:"require-auth" env:"REQUIRE_AUTH" env-default:"false"`
	SQLiteStoragePath string `yaml:"sqlite-storage-path" env:"SQLITE_STORAGE_PATH" env-default:"tictactoe.db"`
	JWTSecretKey      string `yaml:"jwt-secret-key" env:"JWT_SECRET_KEY" env-default:"change-me"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

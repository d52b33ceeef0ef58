package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App struct {
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
	} `mapstructure:"app"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	Stripe struct {
		APIKey        string `mapstructure:"apiKey"`
		WebhookSecret string `mapstructure:"webhookSecret"`
		// Идентификаторы цен зависят от окружения (test/live аккаунт Stripe),
		// поэтому задаются только конфигурацией.
		PriceIDPro     string `mapstructure:"priceIdPro"`
		PriceIDPremium string `mapstructure:"priceIdPremium"`
	} `mapstructure:"stripe"`
	Auth struct {
		JWTSecret string `mapstructure:"jwtSecret"`
	} `mapstructure:"auth"`
}

// LoadConfig загружает конфигурацию из файла или переменных окружения.
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env не обязателен: в контейнере конфиг приходит из окружения
		_ = godotenv.Load(path)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("app.port", "8080")
	viper.SetDefault("app.env", "development")

	viper.AutomaticEnv() // Чтение переменных окружения

	if err := viper.ReadInConfig(); err != nil {
		// Конфиг-файл опционален, окружения достаточно
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

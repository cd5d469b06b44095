package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultLogLevel      = "info"
	defaultEnv           = "local"
	defaultConfigDir     = ".tradekeeper"
	defaultMaxRetries    = 3
	defaultSyncWorkers   = 4
)

type Config struct {
	Env            string `mapstructure:"app_env"`
	ServerAddress  string `mapstructure:"server_address"`
	LogLevel       string `mapstructure:"log_level"`
	ConfigDir      string `mapstructure:"config_dir"`
	TokenPath      string `mapstructure:"token_path"`
	DataPath       string `mapstructure:"data_path"`
	SyncInterval   int    `mapstructure:"sync_interval_seconds"`
	ProbeInterval  int    `mapstructure:"probe_interval_seconds"`
	MaxRetries     int    `mapstructure:"sync_max_retries"`
	RetryDelayMs   int    `mapstructure:"sync_retry_delay_ms"`
	SyncWorkers    int    `mapstructure:"sync_workers"`
	RequestTimeout int    `mapstructure:"request_timeout_seconds"`
	EnableTLS      bool   `mapstructure:"enable_tls"`
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	// Определяем путь к .env файлу (относительно места запуска)
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Пробуем найти .env в родительской директории
		envPath = "../.env"
	}

	// Загружаем .env файл если существует
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	// Устанавливаем значения по умолчанию
	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("SYNC_INTERVAL_SECONDS", 30)
	viper.SetDefault("PROBE_INTERVAL_SECONDS", 5)
	viper.SetDefault("SYNC_MAX_RETRIES", defaultMaxRetries)
	viper.SetDefault("SYNC_RETRY_DELAY_MS", 500)
	viper.SetDefault("SYNC_WORKERS", defaultSyncWorkers)
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 10)
	viper.SetDefault("ENABLE_TLS", false)

	// Получаем домашнюю директорию пользователя
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	// Вычисляем пути для хранения данных
	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}

	// Создаем директории если их нет
	if err := os.MkdirAll(configDir, 0700); err != nil {
		fmt.Printf("Ошибка создания директории конфигурации: %v\n", err)
	}

	tokenPath := filepath.Join(configDir, "token")
	dataPath := filepath.Join(configDir, "ledger.db")

	config := &Config{
		Env:            viper.GetString("APP_ENV"),
		ServerAddress:  viper.GetString("SERVER_ADDRESS"),
		LogLevel:       viper.GetString("LOG_LEVEL"),
		ConfigDir:      configDir,
		TokenPath:      tokenPath,
		DataPath:       dataPath,
		SyncInterval:   viper.GetInt("SYNC_INTERVAL_SECONDS"),
		ProbeInterval:  viper.GetInt("PROBE_INTERVAL_SECONDS"),
		MaxRetries:     viper.GetInt("SYNC_MAX_RETRIES"),
		RetryDelayMs:   viper.GetInt("SYNC_RETRY_DELAY_MS"),
		SyncWorkers:    viper.GetInt("SYNC_WORKERS"),
		RequestTimeout: viper.GetInt("REQUEST_TIMEOUT_SECONDS"),
		EnableTLS:      viper.GetBool("ENABLE_TLS"),
	}

	// Валидация конфигурации
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}

	return config
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("sync_max_retries не может быть отрицательным")
	}
	if c.SyncWorkers <= 0 {
		return fmt.Errorf("sync_workers должно быть положительным")
	}
	return nil
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}

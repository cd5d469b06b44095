// cmd/client/cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/exp/slog"

	"tradekeeper/cmd/client/cmd/types"
	"tradekeeper/internal/app/client"
	"tradekeeper/internal/app/client/config"
	"tradekeeper/internal/utils/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	cfg        *config.Config
	log        *slog.Logger
	app        *client.App
	debug      bool
	jsonOutput bool
	serverURL  string
)

var rootCmd = &cobra.Command{
	Use:   "tradekeeper",
	Short: "Tradekeeper - локальный журнал сделок с синхронизацией",
	Long: `Tradekeeper — это клиентское приложение для ведения журнала сделок
и позиций, работающее без постоянного соединения с сервером.

Все изменения сначала записываются локально, ставятся в очередь и
отправляются на сервер, как только он становится доступен.`,
	PersistentPreRunE: setupApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	// Загружаем конфигурацию
	var err error
	cfg, err = loadConfig()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}
	if debug {
		cfg.LogLevel = "debug"
	}

	// Настраиваем логгер
	log = logger.New(cfg.Env)

	// Создаем приложение
	app, err = client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, types.ClientAppKey, app))

	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Ищем конфиг в стандартных местах
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		configDir := filepath.Join(home, ".tradekeeper")
		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Конфиг не найден, используем значения по умолчанию
	}

	// Загружаем конфигурацию через стандартный метод
	return config.MustLoad(), nil
}

func init() {
	cobra.OnInitialize()

	// Глобальные флаги
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес сервера Tradekeeper")

	// Команды будут добавлены в init() соответствующих файлов
}

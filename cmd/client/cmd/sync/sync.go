package sync

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tradekeeper/cmd/client/cmd/types"
	"tradekeeper/internal/app/client"
)

var (
	syncStatus    bool
	showConflicts bool
	showQueue     bool
	watch         bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Управление синхронизацией",
	Long: `Синхронизация журнала с сервером.

Команда позволяет запустить проход синхронизации, просмотреть статус,
очередь неотправленных операций и конфликты.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		if syncStatus {
			return showSyncStatus(cmd.Context(), app)
		}

		if showConflicts {
			return showSyncConflicts(app)
		}

		if showQueue {
			return showPendingQueue(app)
		}

		if watch {
			return runWatch(cmd.Context(), app)
		}

		return runSync(cmd.Context(), app)
	},
}

var ResolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id> <keep-local|keep-remote|discard>",
	Short: "Разрешить конфликт синхронизации",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		if err := app.ResolveConflict(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("ошибка разрешения конфликта: %w", err)
		}

		fmt.Println("✅ Конфликт разрешен")
		if args[1] == "keep-local" {
			fmt.Println("Локальная версия будет отправлена при следующей синхронизации")
		}

		return nil
	},
}

func runSync(ctx context.Context, app *client.App) error {
	fmt.Println("=== Синхронизация журнала ===")

	if !app.IsAuthenticated() {
		return fmt.Errorf("требуется аутентификация. Выполните: tradekeeper auth login")
	}

	fmt.Println("Проверка соединения с сервером...")
	if err := app.CheckConnection(); err != nil {
		return fmt.Errorf("сервер недоступен: %v", err)
	}

	fmt.Println("Начало синхронизации...")
	result, err := app.SyncNow(ctx)
	if err != nil {
		return fmt.Errorf("ошибка синхронизации: %w", err)
	}

	fmt.Println()
	color.Green("✅ Синхронизация завершена!")
	if result != nil {
		fmt.Printf("Время выполнения: %v\n", result.Duration.Round(time.Millisecond))
		fmt.Printf("Отправлено операций: %d\n", result.Succeeded)
		fmt.Printf("Повторных попыток: %d\n", result.Retried)
		fmt.Printf("Загружено с сервера: %d записей\n", result.Downloaded)

		if result.Failed > 0 {
			color.Red("Операций с исчерпанным бюджетом: %d", result.Failed)
			fmt.Println("   Используйте 'tradekeeper sync --queue' для просмотра")
		}

		if result.Conflicted > 0 {
			color.Yellow("Обнаружено конфликтов: %d", result.Conflicted)
			fmt.Println("   Используйте 'tradekeeper sync --conflicts' для просмотра")
		}
	}

	return nil
}

// runWatch держит клиент запущенным: мониторинг соединения и
// периодическая синхронизация работают в фоне до сигнала завершения.
func runWatch(ctx context.Context, app *client.App) error {
	if !app.IsAuthenticated() {
		return fmt.Errorf("требуется аутентификация. Выполните: tradekeeper auth login")
	}

	fmt.Println("=== Фоновая синхронизация ===")
	fmt.Println("Для остановки нажмите Ctrl+C")

	app.Run()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		fmt.Printf("\nПолучен сигнал %v, завершение...\n", sig)
	case <-ctx.Done():
	}

	app.Shutdown()
	color.Green("✅ Фоновая синхронизация остановлена")
	return nil
}

func showSyncStatus(ctx context.Context, app *client.App) error {
	fmt.Println("=== Статус синхронизации ===")

	stats, err := app.Stats()
	if err != nil {
		return fmt.Errorf("ошибка получения статистики: %w", err)
	}

	fmt.Println("📊 Локальное хранилище:")
	for table, count := range stats.Tables {
		fmt.Printf("  %s: %d записей\n", table, count)
	}
	fmt.Printf("  Операций в очереди: %d\n", stats.PendingSync)
	fmt.Printf("  Открытых конфликтов: %d\n", stats.OpenConflicts)

	if last := app.LastSyncTime(); !last.IsZero() {
		fmt.Printf("\n⏰ Последняя синхронизация: %s\n",
			last.Format("2006-01-02 15:04:05"))
	}

	if pass := app.LastPass(); pass != nil {
		fmt.Printf("\n📈 Последний проход:\n")
		fmt.Printf("  Отправлено: %d | Повторов: %d | Сбоев: %d | Конфликтов: %d\n",
			pass.Succeeded, pass.Retried, pass.Failed, pass.Conflicted)
	}

	// Проверяем соединение с сервером
	fmt.Printf("\n🌐 Соединение с сервером: ")
	if err := app.CheckConnection(); err != nil {
		color.Red("недоступен: %v", err)
	} else {
		color.Green("OK")

		if status, err := app.SyncStatus(ctx); err == nil && status != nil {
			fmt.Printf("  Записей на сервере: %d\n", status.TotalRecords)
			fmt.Printf("  Серверных конфликтов: %d\n", status.OpenConflicts)
		}
	}

	fmt.Printf("🔐 Аутентификация: ")
	if app.IsAuthenticated() {
		color.Green("выполнена")
	} else {
		color.Red("требуется вход")
	}

	return nil
}

func showSyncConflicts(app *client.App) error {
	fmt.Println("=== Конфликты синхронизации ===")

	conflicts, err := app.ListConflicts()
	if err != nil {
		return fmt.Errorf("ошибка получения конфликтов: %w", err)
	}

	if len(conflicts) == 0 {
		color.Green("Конфликтов нет")
		return nil
	}

	for i, c := range conflicts {
		fmt.Printf("%d. Конфликт %s\n", i+1, c.ConflictID)
		fmt.Printf("   Запись: %s/%s\n", c.Table, c.RecordID)
		fmt.Printf("   Обнаружен: %s\n", c.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("   Локально:  %s\n", string(c.LocalPayload))
		fmt.Printf("   На сервере: %s (версия %d)\n", string(c.RemotePayload), c.RemoteVersion)
		fmt.Println()
	}

	fmt.Println("Для разрешения: tradekeeper sync resolve <conflict-id> <keep-local|keep-remote|discard>")
	return nil
}

func showPendingQueue(app *client.App) error {
	fmt.Println("=== Очередь операций ===")

	pending, err := app.ListPendingOperations()
	if err != nil {
		return fmt.Errorf("ошибка чтения очереди: %w", err)
	}

	failed, err := app.ListFailedOperations()
	if err != nil {
		return fmt.Errorf("ошибка чтения очереди: %w", err)
	}

	if len(pending) == 0 && len(failed) == 0 {
		color.Green("Очередь пуста")
		return nil
	}

	for _, op := range pending {
		fmt.Printf("• [%d] %s %s/%s (попыток: %d/%d)\n",
			op.Seq, op.Type, op.Table, op.RecordID, op.RetryCount, op.MaxRetries)
	}

	if len(failed) > 0 {
		fmt.Println()
		color.Red("Операции с исчерпанным бюджетом:")
		for _, op := range failed {
			fmt.Printf("• [%d] %s %s/%s (попыток: %d/%d)\n",
				op.Seq, op.Type, op.Table, op.RecordID, op.RetryCount, op.MaxRetries)
		}
	}

	return nil
}

func init() {
	SyncCmd.Flags().BoolVar(&syncStatus, "status", false, "показать статус синхронизации")
	SyncCmd.Flags().BoolVar(&showConflicts, "conflicts", false, "показать конфликты")
	SyncCmd.Flags().BoolVar(&showQueue, "queue", false, "показать очередь операций")
	SyncCmd.Flags().BoolVar(&watch, "watch", false, "фоновый режим: следить за соединением и синхронизировать периодически")
}

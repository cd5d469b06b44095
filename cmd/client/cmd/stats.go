// cmd/client/cmd/stats.go
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Статистика локального хранилища",
	Long: `Счетчики журнала: записи по таблицам, операции в очереди,
открытые конфликты.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		stats, err := app.Stats()
		if err != nil {
			return fmt.Errorf("ошибка получения статистики: %w", err)
		}

		if jsonOutput {
			data, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return fmt.Errorf("ошибка сериализации: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Println("=== Статистика хранилища ===")
		for table, count := range stats.Tables {
			fmt.Printf("%s: %d записей\n", table, count)
		}
		fmt.Printf("Операций в очереди: %d\n", stats.PendingSync)
		fmt.Printf("Открытых конфликтов: %d\n", stats.OpenConflicts)

		return nil
	},
}

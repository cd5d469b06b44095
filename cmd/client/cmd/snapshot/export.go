// cmd/client/cmd/snapshot/export.go
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tradekeeper/cmd/client/cmd/types"
	"tradekeeper/internal/app/client"
)

var exportOutput string

var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Выгрузить слепок журнала",
	Long: `Экспортирует все таблицы журнала в JSON-файл, включая записи,
ожидающие синхронизации, и удаленные записи.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		snap, err := app.ExportSnapshot()
		if err != nil {
			return fmt.Errorf("ошибка экспорта: %w", err)
		}

		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("ошибка сериализации слепка: %w", err)
		}

		if exportOutput == "" || exportOutput == "-" {
			fmt.Println(string(data))
			return nil
		}

		if err := os.WriteFile(exportOutput, data, 0600); err != nil {
			return fmt.Errorf("ошибка записи файла: %w", err)
		}

		total := 0
		for _, records := range snap.Tables {
			total += len(records)
		}
		fmt.Printf("✅ Экспортировано %d записей в %s\n", total, exportOutput)

		return nil
	},
}

func init() {
	ExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "файл для записи (по умолчанию stdout)")
}

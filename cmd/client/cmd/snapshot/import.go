// cmd/client/cmd/snapshot/import.go
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tradekeeper/cmd/client/cmd/types"
	"tradekeeper/internal/app/client"
	"tradekeeper/internal/domain/ledger"
)

var importForce bool

var ImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Загрузить слепок журнала",
	Long: `Замещает содержимое локального журнала слепком из файла.

Текущие записи, очередь операций и конфликты будут удалены. Операция
атомарна: при некорректном слепке журнал остается нетронутым.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		if !importForce {
			fmt.Print("Импорт заменит весь локальный журнал. Продолжить? (yes/no): ")
			var answer string
			_, _ = fmt.Scanln(&answer)
			if answer != "yes" && answer != "y" {
				fmt.Println("Импорт отменен")
				return nil
			}
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("ошибка чтения файла: %w", err)
		}

		var snap ledger.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("%w: %v", ledger.ErrMalformedSnapshot, err)
		}

		if err := app.ImportSnapshot(&snap); err != nil {
			return fmt.Errorf("ошибка импорта: %w", err)
		}

		total := 0
		for _, records := range snap.Tables {
			total += len(records)
		}
		fmt.Printf("✅ Импортировано %d записей\n", total)

		return nil
	},
}

func init() {
	ImportCmd.Flags().BoolVarP(&importForce, "force", "f", false, "не запрашивать подтверждение")
}

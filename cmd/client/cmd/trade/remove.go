// cmd/client/cmd/trade/remove.go
package trade

import (
	"fmt"

	"github.com/spf13/cobra"

	"tradekeeper/cmd/client/cmd/types"
	"tradekeeper/internal/app/client"
)

var RemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Удалить сделку из журнала",
	Long: `Помечает сделку удаленной. Удаление будет отправлено на сервер
при следующей синхронизации. Повторное удаление того же id — не ошибка.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		if err := app.RemoveTrade(args[0]); err != nil {
			return fmt.Errorf("ошибка удаления сделки: %w", err)
		}

		fmt.Println("✅ Сделка удалена")
		return nil
	},
}

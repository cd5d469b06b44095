// cmd/client/cmd/trade/get.go
package trade

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"tradekeeper/cmd/client/cmd/types"
	"tradekeeper/internal/app/client"
	"tradekeeper/internal/domain/ledger"
)

var GetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Показать сделку",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		rec, err := app.GetTrade(args[0])
		if err != nil {
			return fmt.Errorf("ошибка получения сделки: %w", err)
		}

		var trade ledger.Trade
		if err := json.Unmarshal(rec.Payload, &trade); err != nil {
			return fmt.Errorf("запись повреждена: %w", err)
		}

		fmt.Printf("ID:        %s\n", rec.ID)
		fmt.Printf("Тикер:     %s\n", trade.Symbol)
		fmt.Printf("Сделка:    %s %.4f @ %.2f\n", trade.Side, trade.Quantity, trade.Price)
		fmt.Printf("Исполнено: %s\n", trade.ExecutedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Версия:    %d\n", rec.Version)
		fmt.Printf("Статус:    %s\n", statusLabel(rec.SyncStatus))
		if trade.Note != "" {
			fmt.Printf("Заметка:   %s\n", trade.Note)
		}

		return nil
	},
}

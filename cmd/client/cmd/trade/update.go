// cmd/client/cmd/trade/update.go
package trade

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tradekeeper/cmd/client/cmd/types"
	"tradekeeper/internal/app/client"
	"tradekeeper/internal/domain/ledger"
)

var (
	updateSymbol   string
	updateSide     string
	updateQuantity float64
	updatePrice    float64
	updateNote     string
)

var UpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Изменить сделку",
	Long: `Перезаписывает сделку в локальном журнале.

Изменение сохраняется сразу и будет отправлено при следующей
синхронизации. Если сервер за это время изменил ту же запись,
возникнет конфликт, который нужно разрешить командой sync resolve.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		trade := &ledger.Trade{
			Symbol:     updateSymbol,
			Side:       updateSide,
			Quantity:   updateQuantity,
			Price:      updatePrice,
			ExecutedAt: time.Now(),
			Note:       updateNote,
		}

		rec, err := app.UpdateTrade(args[0], trade)
		if err != nil {
			return fmt.Errorf("ошибка изменения сделки: %w", err)
		}

		fmt.Println("✅ Сделка обновлена")
		fmt.Printf("ID: %s\n", rec.ID)
		fmt.Printf("Статус синхронизации: %s\n", rec.SyncStatus)

		return nil
	},
}

func init() {
	UpdateCmd.Flags().StringVarP(&updateSymbol, "symbol", "s", "", "тикер инструмента")
	UpdateCmd.Flags().StringVar(&updateSide, "side", "buy", "направление сделки (buy/sell)")
	UpdateCmd.Flags().Float64VarP(&updateQuantity, "quantity", "q", 0, "количество")
	UpdateCmd.Flags().Float64VarP(&updatePrice, "price", "p", 0, "цена исполнения")
	UpdateCmd.Flags().StringVar(&updateNote, "note", "", "комментарий")

	_ = UpdateCmd.MarkFlagRequired("symbol")
	_ = UpdateCmd.MarkFlagRequired("quantity")
	_ = UpdateCmd.MarkFlagRequired("price")
}

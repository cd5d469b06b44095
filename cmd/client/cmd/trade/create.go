// cmd/client/cmd/trade/create.go
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
	createSymbol   string
	createSide     string
	createQuantity float64
	createPrice    float64
	createNote     string
)

var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Записать сделку в журнал",
	Long: `Добавляет сделку в локальный журнал.

Сделка сохраняется сразу, независимо от доступности сервера, и будет
отправлена при следующей синхронизации.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		trade := &ledger.Trade{
			Symbol:     createSymbol,
			Side:       createSide,
			Quantity:   createQuantity,
			Price:      createPrice,
			ExecutedAt: time.Now(),
			Note:       createNote,
		}

		rec, err := app.CreateTrade(trade)
		if err != nil {
			return fmt.Errorf("ошибка записи сделки: %w", err)
		}

		fmt.Println("✅ Сделка записана в журнал")
		fmt.Printf("ID: %s\n", rec.ID)
		fmt.Printf("Статус синхронизации: %s\n", rec.SyncStatus)

		return nil
	},
}

func init() {
	CreateCmd.Flags().StringVarP(&createSymbol, "symbol", "s", "", "тикер инструмента")
	CreateCmd.Flags().StringVar(&createSide, "side", "buy", "направление сделки (buy/sell)")
	CreateCmd.Flags().Float64VarP(&createQuantity, "quantity", "q", 0, "количество")
	CreateCmd.Flags().Float64VarP(&createPrice, "price", "p", 0, "цена исполнения")
	CreateCmd.Flags().StringVar(&createNote, "note", "", "комментарий")

	_ = CreateCmd.MarkFlagRequired("symbol")
	_ = CreateCmd.MarkFlagRequired("quantity")
	_ = CreateCmd.MarkFlagRequired("price")
}

// cmd/client/cmd/position/set.go
package position

import (
	"fmt"

	"github.com/spf13/cobra"

	"tradekeeper/cmd/client/cmd/types"
	"tradekeeper/internal/app/client"
	"tradekeeper/internal/domain/ledger"
)

var (
	setQuantity float64
	setAvgPrice float64
)

var SetCmd = &cobra.Command{
	Use:   "set <symbol>",
	Short: "Записать позицию портфеля",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		symbol := args[0]
		rec, err := app.UpsertPosition(symbol, &ledger.Position{
			Symbol:   symbol,
			Quantity: setQuantity,
			AvgPrice: setAvgPrice,
		})
		if err != nil {
			return fmt.Errorf("ошибка записи позиции: %w", err)
		}

		fmt.Printf("✅ Позиция %s записана (версия %d, статус %s)\n",
			symbol, rec.Version, rec.SyncStatus)

		return nil
	},
}

func init() {
	SetCmd.Flags().Float64VarP(&setQuantity, "quantity", "q", 0, "количество")
	SetCmd.Flags().Float64VarP(&setAvgPrice, "avg-price", "p", 0, "средняя цена")

	_ = SetCmd.MarkFlagRequired("quantity")
	_ = SetCmd.MarkFlagRequired("avg-price")
}

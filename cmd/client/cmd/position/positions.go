package position

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tradekeeper/cmd/client/cmd/types"
	"tradekeeper/internal/app/client"
	"tradekeeper/internal/domain/ledger"
)

// PositionCmd - родительская команда для работы с позициями портфеля
var PositionCmd = &cobra.Command{
	Use:   "position",
	Short: "Позиции портфеля",
}

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список позиций",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		records, err := app.ListPositions(nil)
		if err != nil {
			return fmt.Errorf("ошибка получения позиций: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("Позиции не найдены")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Тикер\tКол-во\tСр. цена\tСтатус\t\n")
		fmt.Fprintf(w, "---\t---\t---\t---\t\n")

		for _, rec := range records {
			var pos ledger.Position
			if err := json.Unmarshal(rec.Payload, &pos); err != nil {
				continue
			}
			fmt.Fprintf(w, "%s\t%.4f\t%.2f\t%s\t\n",
				pos.Symbol, pos.Quantity, pos.AvgPrice, rec.SyncStatus)
		}

		return w.Flush()
	},
}

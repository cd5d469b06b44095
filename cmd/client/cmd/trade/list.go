// cmd/client/cmd/trade/list.go
package trade

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tradekeeper/cmd/client/cmd/types"
	"tradekeeper/internal/app/client"
	"tradekeeper/internal/domain/ledger"
)

var (
	listStatus  string
	listFormat  string
	showDeleted bool
	limit       int
	offset      int
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список сделок",
	Long: `Просмотр журнала сделок с фильтрацией по статусу синхронизации.

Поддерживается пагинация через флаги --limit и --offset.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		filter := &ledger.RecordFilter{
			SyncStatus:  ledger.SyncStatus(listStatus),
			ShowDeleted: showDeleted,
			Limit:       limit,
			Offset:      offset,
		}

		records, err := app.ListTrades(filter)
		if err != nil {
			return fmt.Errorf("ошибка получения журнала: %w", err)
		}

		switch listFormat {
		case "json":
			return printTradesJSON(records)
		case "table":
			return printTradesTable(records)
		default:
			return printTradesSimple(records)
		}
	},
}

func printTradesSimple(records []*ledger.Record) error {
	if len(records) == 0 {
		fmt.Println("Сделки не найдены")
		return nil
	}

	fmt.Printf("Найдено сделок: %d\n\n", len(records))

	for i, rec := range records {
		var trade ledger.Trade
		if err := json.Unmarshal(rec.Payload, &trade); err != nil {
			fmt.Printf("%d. [?] запись %s повреждена\n", i+1, rec.ID)
			continue
		}

		fmt.Printf("%d. %s %s %.4f @ %.2f (%s)\n",
			i+1, sideLabel(trade.Side), trade.Symbol, trade.Quantity, trade.Price,
			statusLabel(rec.SyncStatus))
		fmt.Printf("   ID: %s | Исполнено: %s\n",
			rec.ID, trade.ExecutedAt.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}

	return nil
}

func printTradesTable(records []*ledger.Record) error {
	if len(records) == 0 {
		fmt.Println("Сделки не найдены")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tТикер\tНаправление\tКол-во\tЦена\tСтатус\tИсполнено\t\n")
	fmt.Fprintf(w, "---\t---\t---\t---\t---\t---\t---\t\n")

	for _, rec := range records {
		var trade ledger.Trade
		if err := json.Unmarshal(rec.Payload, &trade); err != nil {
			continue
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.2f\t%s\t%s\t\n",
			rec.ID, trade.Symbol, trade.Side, trade.Quantity, trade.Price,
			rec.SyncStatus, trade.ExecutedAt.Format("2006-01-02"))
	}

	return w.Flush()
}

func printTradesJSON(records []*ledger.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func sideLabel(side string) string {
	if side == "sell" {
		return color.RedString("SELL")
	}
	return color.GreenString("BUY ")
}

func statusLabel(status ledger.SyncStatus) string {
	switch status {
	case ledger.StatusSynced:
		return color.GreenString("synced")
	case ledger.StatusFailed:
		return color.RedString("failed")
	default:
		return color.YellowString("pending")
	}
}

func init() {
	ListCmd.Flags().StringVar(&listStatus, "status", "", "фильтр по статусу (pending/synced/failed)")
	ListCmd.Flags().StringVarP(&listFormat, "format", "f", "simple", "формат вывода (simple/table/json)")
	ListCmd.Flags().BoolVar(&showDeleted, "deleted", false, "показывать удаленные")
	ListCmd.Flags().IntVar(&limit, "limit", 0, "максимум записей")
	ListCmd.Flags().IntVar(&offset, "offset", 0, "смещение")
}

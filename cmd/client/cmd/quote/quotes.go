// cmd/client/cmd/quote/quotes.go
package quote

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tradekeeper/cmd/client/cmd/types"
	"tradekeeper/internal/app/client"
	"tradekeeper/internal/domain/ledger"
)

// QuoteCmd - родительская команда для локального кэша котировок.
// Котировки на сервер не отправляются.
var QuoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Локальный кэш котировок",
}

var (
	setPrice    float64
	setProvider string
)

var SetCmd = &cobra.Command{
	Use:   "set <symbol>",
	Short: "Сохранить котировку в кэш",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		symbol := args[0]
		_, err := app.CacheQuote(&ledger.Quote{
			Symbol:   symbol,
			Price:    setPrice,
			AsOf:     time.Now(),
			Provider: setProvider,
		})
		if err != nil {
			return fmt.Errorf("ошибка сохранения котировки: %w", err)
		}

		fmt.Printf("✅ Котировка %s = %.2f сохранена\n", symbol, setPrice)
		return nil
	},
}

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список кэшированных котировок",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		records, err := app.ListQuotes()
		if err != nil {
			return fmt.Errorf("ошибка чтения кэша котировок: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("Кэш котировок пуст")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Тикер\tЦена\tНа момент\tИсточник\t\n")
		fmt.Fprintf(w, "---\t---\t---\t---\t\n")

		for _, rec := range records {
			var q ledger.Quote
			if err := json.Unmarshal(rec.Payload, &q); err != nil {
				continue
			}
			fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\t\n",
				q.Symbol, q.Price, q.AsOf.Format("2006-01-02 15:04:05"), q.Provider)
		}

		return w.Flush()
	},
}

func init() {
	SetCmd.Flags().Float64VarP(&setPrice, "price", "p", 0, "цена")
	SetCmd.Flags().StringVar(&setProvider, "provider", "", "источник котировки")

	_ = SetCmd.MarkFlagRequired("price")
}

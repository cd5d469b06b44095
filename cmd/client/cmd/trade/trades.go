package trade

import (
	"github.com/spf13/cobra"
)

// TradeCmd - родительская команда для операций с журналом сделок
var TradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Управление журналом сделок",
	Long:  `Создание, просмотр и удаление сделок. Все операции работают без сети.`,
}

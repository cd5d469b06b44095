// cmd/client/cmd/init.go
package cmd

import (
	"tradekeeper/cmd/client/cmd/auth"
	"tradekeeper/cmd/client/cmd/position"
	"tradekeeper/cmd/client/cmd/quote"
	"tradekeeper/cmd/client/cmd/snapshot"
	"tradekeeper/cmd/client/cmd/sync"
	"tradekeeper/cmd/client/cmd/trade"
)

func init() {
	// Команды аутентификации
	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.RegisterCmd)
	auth.AuthCmd.AddCommand(auth.LoginCmd)

	// Журнал сделок
	rootCmd.AddCommand(trade.TradeCmd)
	trade.TradeCmd.AddCommand(trade.CreateCmd)
	trade.TradeCmd.AddCommand(trade.GetCmd)
	trade.TradeCmd.AddCommand(trade.ListCmd)
	trade.TradeCmd.AddCommand(trade.UpdateCmd)
	trade.TradeCmd.AddCommand(trade.RemoveCmd)

	// Позиции портфеля
	rootCmd.AddCommand(position.PositionCmd)
	position.PositionCmd.AddCommand(position.SetCmd)
	position.PositionCmd.AddCommand(position.ListCmd)

	// Кэш котировок
	rootCmd.AddCommand(quote.QuoteCmd)
	quote.QuoteCmd.AddCommand(quote.SetCmd)
	quote.QuoteCmd.AddCommand(quote.ListCmd)

	// Синхронизация
	rootCmd.AddCommand(sync.SyncCmd)
	sync.SyncCmd.AddCommand(sync.ResolveCmd)

	// Экспорт и импорт
	rootCmd.AddCommand(snapshot.SnapshotCmd)
	snapshot.SnapshotCmd.AddCommand(snapshot.ExportCmd)
	snapshot.SnapshotCmd.AddCommand(snapshot.ImportCmd)

	rootCmd.AddCommand(statsCmd)
}

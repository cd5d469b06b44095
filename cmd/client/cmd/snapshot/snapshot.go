package snapshot

import (
	"github.com/spf13/cobra"
)

// SnapshotCmd - родительская команда экспорта и импорта журнала
var SnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Экспорт и импорт журнала",
	Long:  `Полный слепок локального журнала для резервного копирования или переноса.`,
}

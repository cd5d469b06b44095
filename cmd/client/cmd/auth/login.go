// cmd/client/cmd/auth/login.go
package auth

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tradekeeper/cmd/client/cmd/types"
	"tradekeeper/internal/app/client"
	"tradekeeper/internal/domain/user"
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Войти в систему Tradekeeper",
	Long: `Аутентификация на сервере Tradekeeper.

После входа токен сохраняется локально для последующих операций.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		fmt.Println("=== Вход в систему ===")
		fmt.Println()

		fmt.Print("Login: ")
		var login string
		_, _ = fmt.Scanln(&login)

		// Запрашиваем пароль
		fmt.Print("Пароль: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("ошибка чтения пароля: %w", err)
		}
		fmt.Println()

		// Выполняем вход
		fmt.Println("Аутентификация...")
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		_, err = app.Login(ctx, user.BaseRequest{
			Login:    login,
			Password: string(password),
		})
		if err != nil {
			return fmt.Errorf("ошибка аутентификации: %w", err)
		}

		fmt.Println()
		fmt.Println("✅ Вход выполнен успешно!")

		// Выталкиваем накопившуюся очередь
		fmt.Println("Синхронизация данных...")
		result, err := app.SyncNow(ctx)
		if err != nil {
			fmt.Printf("⚠️  Предупреждение: ошибка синхронизации: %v\n", err)
			fmt.Println("Вы можете продолжить работу в офлайн-режиме")
		} else if result != nil && result.Failed > 0 {
			fmt.Printf("⚠️  Синхронизация завершена с ошибками (%d)\n", result.Failed)
			fmt.Println("Вы можете продолжить работу в офлайн-режиме")
		} else {
			fmt.Println("✓ Данные синхронизированы")
		}

		return nil
	},
}

package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"tradekeeper/internal/domain/session"
)

type Auth struct {
	session session.Servicer
	log     *slog.Logger
}

func New(session session.Servicer, log *slog.Logger) *Auth {
	return &Auth{
		session: session,
		log:     log.With("component", "auth_middleware"),
	}
}

type contextKey string

const AccountIDKey contextKey = "accountID"

// Middleware возвращает middleware для Huma с сигнатурой func(ctx Context, next func(Context))
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token := ctx.Header("Authorization")

		if len(token) < 7 || token[:7] != "Bearer " {
			a.unauthorized(ctx)
			return
		}

		// Валидируем токен
		accountID, err := a.session.Validate(ctx.Context(), token[7:])
		if err != nil {
			a.log.Debug("token validation failed", "error", err)
			a.unauthorized(ctx)
			return
		}

		newCtx := context.WithValue(ctx.Context(), AccountIDKey, accountID)
		next(huma.WithContext(ctx, newCtx))
	}
}

func (a *Auth) unauthorized(ctx huma.Context) {
	ctx.SetStatus(http.StatusUnauthorized)
	ctx.SetHeader("Content-Type", "application/json")

	if err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{
		"error": "Unauthorized",
	}); err != nil {
		a.log.Error("json encode", "error", err)
	}
}

func GetAccountID(ctx context.Context) (int, bool) {
	accountID, ok := ctx.Value(AccountIDKey).(int)
	return accountID, ok
}

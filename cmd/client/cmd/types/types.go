package types

type ctxKey string

// ClientAppKey — ключ, под которым инициализированное приложение
// кладется в контекст команды.
const ClientAppKey ctxKey = "app"

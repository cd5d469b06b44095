package client

import (
	"context"
	"fmt"
	"os"
	gosync "sync"
	"time"

	"golang.org/x/exp/slog"

	"tradekeeper/internal/app/client/config"
	"tradekeeper/internal/domain/ledger"
	"tradekeeper/internal/domain/sync"
	"tradekeeper/internal/domain/user"
	"tradekeeper/internal/utils/clock"
)

// App — клиентское приложение: локальный журнал сделок, очередь
// мутаций, движок синхронизации и мониторинг соединения.
type App struct {
	config     *config.Config
	log        *slog.Logger
	httpClient *httpClient
	store      *SQLiteStore
	queue      *QueueManager
	engine     *SyncEngine
	monitor    *ConnectivityMonitor

	mu            gosync.RWMutex
	authenticated bool
	wg            gosync.WaitGroup
	cancel        context.CancelFunc
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	httpCl, err := NewHTTPClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации HTTP клиента: %w", err)
	}

	store, err := NewSQLiteStore(cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации хранилища: %w", err)
	}

	queue := NewQueueManager(store)

	clk := clock.System()
	engine := NewSyncEngine(store, queue, httpCl, log, &SyncConfig{
		Interval:       time.Duration(cfg.SyncInterval) * time.Second,
		Workers:        cfg.SyncWorkers,
		RetryDelay:     time.Duration(cfg.RetryDelayMs) * time.Millisecond,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
	}, clk, cfg.ConfigDir)

	monitor := NewConnectivityMonitor(httpCl, log, clk,
		time.Duration(cfg.ProbeInterval)*time.Second)

	app := &App{
		config:     cfg,
		log:        log,
		httpClient: httpCl,
		store:      store,
		queue:      queue,
		engine:     engine,
		monitor:    monitor,
	}

	// Восстановление соединения — повод вытолкнуть накопившуюся очередь
	monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		app.log.Info("Соединение восстановлено, запуск синхронизации")
		go func() {
			if _, err := engine.Sync(context.Background()); err != nil {
				app.log.Error("Ошибка синхронизации после восстановления", "error", err)
			}
		}()
	})

	// Загружаем токен если он есть
	if token, err := app.GetToken(); err == nil && token != "" {
		httpCl.SetToken(token)
		app.authenticated = true
		log.Debug("Токен загружен из файла")
	}

	return app, nil
}

// Run запускает фоновые процессы: мониторинг соединения и
// периодическую синхронизацию
func (a *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.monitor.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.engine.StartAutoSync(ctx)
	}()

	a.log.Info("Клиент запущен",
		"server", a.config.ServerAddress,
		"env", a.config.Env,
	)
}

func (a *App) Shutdown() {
	a.log.Info("Завершение работы клиента...")

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if err := a.store.Close(); err != nil {
		a.log.Warn("Ошибка закрытия хранилища", "error", err)
	}

	a.log.Info("Клиент завершил работу")
}

// CheckConnection проверяет соединение с сервером
func (a *App) CheckConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return a.httpClient.HealthCheck(ctx)
}

// IsAuthenticated проверяет, аутентифицирован ли пользователь
func (a *App) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.authenticated {
		token, err := a.GetToken()
		if err == nil && token != "" {
			a.authenticated = true
		}
	}

	return a.authenticated
}

// GetToken возвращает сохраненный токен
func (a *App) GetToken() (string, error) {
	tokenBytes, err := os.ReadFile(a.config.TokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("токен не найден. Выполните вход: tradekeeper auth login")
		}
		return "", fmt.Errorf("ошибка чтения токена: %w", err)
	}
	return string(tokenBytes), nil
}

// SaveToken сохраняет токен аутентификации
func (a *App) SaveToken(token string) error {
	if err := os.WriteFile(a.config.TokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("ошибка сохранения токена: %w", err)
	}

	a.httpClient.SetToken(token)

	return nil
}

// ClearToken удаляет токен
func (a *App) ClearToken() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.authenticated = false
	if err := os.Remove(a.config.TokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления токена: %w", err)
	}

	return nil
}

// Register регистрирует нового пользователя
func (a *App) Register(ctx context.Context, req user.BaseRequest) error {
	if err := a.httpClient.Register(ctx, req.Login, req.Password); err != nil {
		return err
	}

	a.log.Info("Пользователь успешно зарегистрирован", "login", req.Login)
	return nil
}

// Login выполняет вход пользователя
func (a *App) Login(ctx context.Context, req user.BaseRequest) (string, error) {
	token, err := a.httpClient.Login(ctx, req.Login, req.Password)
	if err != nil {
		return "", err
	}

	if err = a.SaveToken(token); err != nil {
		return "", fmt.Errorf("ошибка сохранения токена: %w", err)
	}

	a.mu.Lock()
	a.authenticated = true
	a.mu.Unlock()

	a.log.Info("Вход выполнен успешно", "login", req.Login)
	return token, nil
}

// CreateTrade записывает сделку в локальный журнал. Работает без сети:
// мутация встает в очередь и будет отправлена при первой возможности.
func (a *App) CreateTrade(trade *ledger.Trade) (*ledger.Record, error) {
	if err := trade.Validate(); err != nil {
		return nil, err
	}

	payload, err := ledger.Marshal(trade)
	if err != nil {
		return nil, err
	}

	rec, err := a.store.Put(ledger.TableTrades, &ledger.Record{Payload: payload},
		PutOptions{MaxRetries: a.config.MaxRetries})
	if err != nil {
		return nil, err
	}

	a.log.Info("Сделка записана в журнал",
		"id", rec.ID,
		"symbol", trade.Symbol,
		"side", trade.Side,
	)
	return rec, nil
}

// UpdateTrade перезаписывает сделку по идентификатору
func (a *App) UpdateTrade(id string, trade *ledger.Trade) (*ledger.Record, error) {
	if err := trade.Validate(); err != nil {
		return nil, err
	}

	payload, err := ledger.Marshal(trade)
	if err != nil {
		return nil, err
	}

	return a.store.Put(ledger.TableTrades, &ledger.Record{ID: id, Payload: payload},
		PutOptions{MaxRetries: a.config.MaxRetries})
}

// GetTrade возвращает сделку по идентификатору
func (a *App) GetTrade(id string) (*ledger.Record, error) {
	return a.store.Get(ledger.TableTrades, id)
}

// ListTrades возвращает сделки журнала
func (a *App) ListTrades(filter *ledger.RecordFilter) ([]*ledger.Record, error) {
	return a.store.List(ledger.TableTrades, filter)
}

// RemoveTrade удаляет сделку. Идемпотентна.
func (a *App) RemoveTrade(id string) error {
	return a.store.Remove(ledger.TableTrades, id, PutOptions{MaxRetries: a.config.MaxRetries})
}

// UpsertPosition записывает позицию портфеля
func (a *App) UpsertPosition(id string, pos *ledger.Position) (*ledger.Record, error) {
	payload, err := ledger.Marshal(pos)
	if err != nil {
		return nil, err
	}

	return a.store.Put(ledger.TablePositions, &ledger.Record{ID: id, Payload: payload},
		PutOptions{MaxRetries: a.config.MaxRetries})
}

// ListPositions возвращает позиции портфеля
func (a *App) ListPositions(filter *ledger.RecordFilter) ([]*ledger.Record, error) {
	return a.store.List(ledger.TablePositions, filter)
}

// CacheQuote сохраняет котировку в локальный кэш. Котировки на сервер
// не отправляются.
func (a *App) CacheQuote(quote *ledger.Quote) (*ledger.Record, error) {
	payload, err := ledger.Marshal(quote)
	if err != nil {
		return nil, err
	}

	return a.store.Put(ledger.TableQuotes,
		&ledger.Record{ID: quote.Symbol, Payload: payload},
		PutOptions{LocalOnly: true})
}

// ListQuotes возвращает локальный кэш котировок
func (a *App) ListQuotes() ([]*ledger.Record, error) {
	return a.store.List(ledger.TableQuotes, nil)
}

// SyncNow запускает проход синхронизации
func (a *App) SyncNow(ctx context.Context) (*ledger.PassResult, error) {
	if !a.IsAuthenticated() {
		return nil, fmt.Errorf("пользователь не аутентифицирован")
	}
	return a.engine.Sync(ctx)
}

// SyncStatus возвращает серверный статус синхронизации
func (a *App) SyncStatus(ctx context.Context) (*sync.Status, error) {
	return a.httpClient.GetSyncStatus(ctx)
}

// Stats возвращает локальные счетчики хранилища
func (a *App) Stats() (*ledger.StoreStats, error) {
	return a.store.Stats()
}

// ListPendingOperations возвращает очередь неотправленных мутаций
func (a *App) ListPendingOperations() ([]*ledger.MutationOperation, error) {
	return a.queue.ListPending()
}

// ListFailedOperations возвращает операции с исчерпанным бюджетом
func (a *App) ListFailedOperations() ([]*ledger.MutationOperation, error) {
	return a.queue.ListFailed()
}

// ListConflicts возвращает открытые конфликты
func (a *App) ListConflicts() ([]*ledger.ConflictRecord, error) {
	return a.store.ListConflicts(ledger.ConflictOpen)
}

// ResolveConflict разрешает конфликт одним из трех способов:
//   - keep-local: локальная версия перевыставляется поверх серверной;
//   - keep-remote: серверная версия замещает локальную;
//   - discard: конфликт закрывается, запись остается как есть.
func (a *App) ResolveConflict(ctx context.Context, conflictID, resolution string) error {
	conflict, err := a.store.GetConflict(conflictID)
	if err != nil {
		return err
	}

	switch resolution {
	case "keep-local":
		// Сначала закрываем конфликт: пока он открыт, запись
		// заморожена для мутаций
		if err := a.store.MarkConflictResolved(conflictID, ledger.ResolveManual); err != nil {
			return err
		}
		// Принимаем серверную версию за базовую и ставим локальный
		// payload в очередь заново
		if conflict.RemoteVersion > 0 {
			if err := a.store.setRecordVersion(conflict.Table, conflict.RecordID, conflict.RemoteVersion); err != nil {
				return err
			}
		}
		_, err = a.store.Put(conflict.Table,
			&ledger.Record{ID: conflict.RecordID, Payload: conflict.LocalPayload},
			PutOptions{MaxRetries: a.config.MaxRetries})
		if err != nil {
			return err
		}

	case "keep-remote":
		err = a.store.applyRemote(conflict.Table, &ledger.Record{
			ID:      conflict.RecordID,
			Payload: conflict.RemotePayload,
			Version: conflict.RemoteVersion,
			Deleted: len(conflict.RemotePayload) == 0,
		})
		if err != nil {
			return err
		}
		if err := a.store.MarkConflictResolved(conflictID, ledger.ResolveManual); err != nil {
			return err
		}
		// Сообщаем серверу, что его версия принята
		if rerr := a.resolveRemoteConflict(ctx, conflict.Table, conflict.RecordID); rerr != nil {
			a.log.Warn("Не удалось закрыть конфликт на сервере", "error", rerr)
		}

	case "discard":
		if err := a.store.MarkConflictResolved(conflictID, ledger.ResolveManual); err != nil {
			return err
		}

	default:
		return fmt.Errorf("неизвестный способ разрешения: %s", resolution)
	}

	return a.store.RefreshRecordStatus(conflict.Table, conflict.RecordID)
}

// resolveRemoteConflict закрывает на сервере конфликт той же записи
func (a *App) resolveRemoteConflict(ctx context.Context, table, recordID string) error {
	conflicts, err := a.httpClient.GetConflicts(ctx)
	if err != nil {
		return err
	}

	for _, c := range conflicts {
		if c.Table != table || c.RecordID != recordID {
			continue
		}
		return a.httpClient.ResolveConflict(ctx, c.ID,
			sync.ResolveConflictRequest{Resolution: "server"})
	}

	return nil
}

// ExportSnapshot выгружает слепок журнала
func (a *App) ExportSnapshot() (*ledger.Snapshot, error) {
	return a.store.Export()
}

// ImportSnapshot замещает журнал слепком
func (a *App) ImportSnapshot(snapshot *ledger.Snapshot) error {
	return a.store.Import(snapshot)
}

// LastSyncTime возвращает время последней синхронизации
func (a *App) LastSyncTime() time.Time {
	return a.engine.LastSyncTime()
}

// LastPass возвращает сводку последнего прохода
func (a *App) LastPass() *ledger.PassResult {
	return a.engine.LastPass()
}

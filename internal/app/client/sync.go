package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"golang.org/x/exp/slog"

	"tradekeeper/internal/domain/ledger"
	"tradekeeper/internal/domain/sync"
	"tradekeeper/internal/utils/clock"
)

// Remote — серверная сторона синхронизации. Вынесена в интерфейс,
// чтобы движок можно было тестировать без реального сервера.
type Remote interface {
	Apply(ctx context.Context, req sync.ApplyRequest) (*sync.ApplyResponse, error)
	GetChanges(ctx context.Context, req sync.GetChangesRequest) (*sync.GetChangesResponse, error)
}

// SyncConfig — конфигурация движка синхронизации
type SyncConfig struct {
	Interval       time.Duration `json:"interval"`
	Workers        int           `json:"workers"`
	RetryDelay     time.Duration `json:"retry_delay"`
	RequestTimeout time.Duration `json:"request_timeout"`
	BatchSize      int           `json:"batch_size"`
}

// syncMetadata — сохраняемые между запусками метаданные
type syncMetadata struct {
	LastSyncTime time.Time `json:"last_sync_time"`
	TotalPasses  int64     `json:"total_passes"`
}

// SyncEngine продвигает очередь мутаций к серверу и скачивает чужие
// изменения. Одновременно выполняется не более одного прохода;
// повторные запросы во время прохода сливаются в один дозапуск.
type SyncEngine struct {
	store   *SQLiteStore
	queue   *QueueManager
	remote  Remote
	log     *slog.Logger
	config  *SyncConfig
	clk     clock.Clock
	metaDir string

	mu        gosync.Mutex
	isSyncing bool
	rerun     bool
	lastSync  time.Time
	lastPass  *ledger.PassResult
}

func NewSyncEngine(store *SQLiteStore, queue *QueueManager, remote Remote, log *slog.Logger, cfg *SyncConfig, clk clock.Clock, metaDir string) *SyncEngine {
	if cfg == nil {
		cfg = &SyncConfig{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if clk == nil {
		clk = clock.System()
	}

	e := &SyncEngine{
		store:   store,
		queue:   queue,
		remote:  remote,
		log:     log,
		config:  cfg,
		clk:     clk,
		metaDir: metaDir,
	}

	if meta, err := e.loadMetadata(); err == nil {
		e.lastSync = meta.LastSyncTime
	}

	return e
}

// Sync выполняет один проход синхронизации. Если проход уже идет,
// запрос сливается с ним: после текущего прохода будет выполнен еще
// один. Сбои отдельных операций в ошибку прохода не превращаются.
func (e *SyncEngine) Sync(ctx context.Context) (*ledger.PassResult, error) {
	e.mu.Lock()
	if e.isSyncing {
		e.rerun = true
		e.mu.Unlock()
		e.log.Debug("Синхронизация уже выполняется, запрос объединен")
		return nil, nil
	}
	e.isSyncing = true
	e.mu.Unlock()

	var result *ledger.PassResult
	for {
		result = e.runPass(ctx)

		e.mu.Lock()
		again := e.rerun && ctx.Err() == nil
		e.rerun = false
		if !again {
			e.isSyncing = false
			e.lastPass = result
			e.mu.Unlock()
			break
		}
		e.mu.Unlock()
	}

	return result, nil
}

// runPass — один проход: выгрузка очереди, затем скачивание изменений
func (e *SyncEngine) runPass(ctx context.Context) *ledger.PassResult {
	result := &ledger.PassResult{StartTime: e.clk.Now()}
	defer func() {
		result.Duration = e.clk.Now().Sub(result.StartTime)
	}()

	e.log.Info("Начало прохода синхронизации", "start_time", result.StartTime)

	ops, err := e.queue.ListPending()
	if err != nil {
		e.log.Error("Ошибка чтения очереди", "error", err)
		return result
	}

	if len(ops) > 0 {
		e.uploadQueue(ctx, ops, result)
	}

	if ctx.Err() == nil {
		downloaded, err := e.downloadChanges(ctx)
		if err != nil {
			e.log.Warn("Ошибка скачивания изменений", "error", err)
		}
		result.Downloaded = downloaded
	}

	e.log.Info("Проход синхронизации завершен",
		"succeeded", result.Succeeded,
		"retried", result.Retried,
		"failed", result.Failed,
		"conflicted", result.Conflicted,
		"downloaded", result.Downloaded,
	)

	return result
}

// uploadQueue отправляет операции очереди. Операции группируются по
// записи: внутри группы строгий FIFO, группы обрабатываются пулом
// воркеров параллельно.
func (e *SyncEngine) uploadQueue(ctx context.Context, ops []*ledger.MutationOperation, result *ledger.PassResult) {
	type group struct {
		key string
		ops []*ledger.MutationOperation
	}

	index := make(map[string]int)
	var groups []*group
	for _, op := range ops {
		key := op.Table + "/" + op.RecordID
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, &group{key: key})
		}
		groups[i].ops = append(groups[i].ops, op)
	}

	var (
		wg  gosync.WaitGroup
		mu  gosync.Mutex
		sem = make(chan struct{}, e.config.Workers)
	)

	for _, g := range groups {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(g *group) {
			defer wg.Done()
			defer func() { <-sem }()

			partial := e.processGroup(ctx, g.ops)

			mu.Lock()
			result.Succeeded += partial.Succeeded
			result.Retried += partial.Retried
			result.Failed += partial.Failed
			result.Conflicted += partial.Conflicted
			mu.Unlock()
		}(g)
	}

	wg.Wait()
}

// processGroup применяет операции одной записи строго по порядку.
// Сбой операции останавливает группу: более поздние операции той же
// записи не должны обгонять застрявшую.
func (e *SyncEngine) processGroup(ctx context.Context, ops []*ledger.MutationOperation) *ledger.PassResult {
	partial := &ledger.PassResult{}

	var table, recordID string
	for i, op := range ops {
		table, recordID = op.Table, op.RecordID

		if ctx.Err() != nil {
			break
		}

		outcome, serverVersion := e.applyWithRetry(ctx, op, partial)

		// Отмена прохода не сбой: операция остается в очереди
		// и уйдет в следующем проходе
		if outcome != ledger.OutcomeSuccess && ctx.Err() != nil {
			break
		}

		switch outcome {
		case ledger.OutcomeSuccess:
			partial.Succeeded++
		case ledger.OutcomeTransient:
			partial.Failed++
		case ledger.OutcomePermanent:
			partial.Failed++
		}

		if outcome != ledger.OutcomeSuccess {
			break
		}

		// Сервер поднял версию записи: оставшиеся операции группы
		// применяются уже поверх нее, иначе они дадут ложный конфликт
		if serverVersion > 0 {
			for _, next := range ops[i+1:] {
				next.BaseVersion = serverVersion
			}
			if rerr := e.queue.Rebase(table, recordID, serverVersion); rerr != nil {
				e.log.Warn("Ошибка обновления базовой версии очереди",
					"table", table, "record_id", recordID, "error", rerr)
			}
		}
	}

	if table != "" {
		if err := e.store.RefreshRecordStatus(table, recordID); err != nil {
			e.log.Warn("Ошибка обновления статуса записи",
				"table", table, "record_id", recordID, "error", err)
		}
	}

	return partial
}

// applyWithRetry применяет одну операцию, повторяя временные сбои в
// рамках оставшегося бюджета попыток. Возвращает итоговый результат и
// подтвержденную сервером версию записи (0, если подтверждения не было).
func (e *SyncEngine) applyWithRetry(ctx context.Context, op *ledger.MutationOperation, partial *ledger.PassResult) (ledger.Outcome, int) {
	attempts := op.MaxRetries - op.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			partial.Retried++
			e.log.Debug("Повторная попытка операции",
				"operation_id", op.OperationID,
				"attempt", attempt)
			select {
			case <-ctx.Done():
				return ledger.OutcomeTransient, 0
			case <-e.clk.After(e.config.RetryDelay):
			}
		}

		resp, err := e.applyOnce(ctx, op)

		switch {
		case err == nil && resp.Conflict:
			// Расхождение версий: фиксируем конфликт локально,
			// операция больше не повторяется, запись остается
			// несинхронизированной до явного разрешения.
			e.recordConflict(op, resp)
			partial.Conflicted++
			if merr := e.queue.MarkOutcome(op.OperationID, ledger.OutcomePermanent); merr != nil {
				e.log.Warn("Ошибка фиксации конфликта в очереди", "error", merr)
			}
			return ledger.OutcomePermanent, 0

		case err == nil:
			if merr := e.queue.MarkOutcome(op.OperationID, ledger.OutcomeSuccess); merr != nil {
				e.log.Warn("Ошибка фиксации успеха операции", "error", merr)
			}
			if resp.ServerVersion > 0 {
				if verr := e.store.setRecordVersion(op.Table, op.RecordID, resp.ServerVersion); verr != nil {
					e.log.Warn("Ошибка обновления версии записи", "error", verr)
				}
			}
			return ledger.OutcomeSuccess, resp.ServerVersion

		case errors.Is(err, ledger.ErrTransientSync):
			// Сбой из-за отмены прохода не тратит бюджет попыток
			if ctx.Err() != nil {
				return ledger.OutcomeTransient, 0
			}
			e.log.Debug("Временный сбой операции",
				"operation_id", op.OperationID, "error", err)
			if merr := e.queue.MarkOutcome(op.OperationID, ledger.OutcomeTransient); merr != nil {
				e.log.Warn("Ошибка учета временного сбоя", "error", merr)
			}
			op.RetryCount++

		default:
			e.log.Error("Операция отклонена сервером",
				"operation_id", op.OperationID, "error", err)
			if merr := e.queue.MarkOutcome(op.OperationID, ledger.OutcomePermanent); merr != nil {
				e.log.Warn("Ошибка фиксации отказа операции", "error", merr)
			}
			return ledger.OutcomePermanent, 0
		}
	}

	return ledger.OutcomeTransient, 0
}

// applyOnce — одна попытка с собственным таймаутом. Истекший таймаут
// считается временным сбоем.
func (e *SyncEngine) applyOnce(ctx context.Context, op *ledger.MutationOperation) (*sync.ApplyResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()

	resp, err := e.remote.Apply(reqCtx, sync.ApplyRequest{
		Table:         op.Table,
		OperationType: string(op.Type),
		RecordID:      op.RecordID,
		Payload:       op.Payload,
		BaseVersion:   op.BaseVersion,
	})
	if err != nil {
		// Отмена прохода и таймаут не приговор операции: она остается
		// в очереди и уйдет при следующей синхронизации.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: запрос прерван", ledger.ErrTransientSync)
		}
		return nil, err
	}

	return resp, nil
}

func (e *SyncEngine) recordConflict(op *ledger.MutationOperation, resp *sync.ApplyResponse) {
	conflict := &ledger.ConflictRecord{
		Table:         op.Table,
		RecordID:      op.RecordID,
		LocalPayload:  op.Payload,
		RemotePayload: resp.ServerPayload,
		RemoteVersion: resp.ServerVersion,
		CreatedAt:     e.clk.Now(),
	}

	if _, err := e.store.SaveConflict(conflict); err != nil {
		e.log.Error("Ошибка сохранения конфликта",
			"table", op.Table, "record_id", op.RecordID, "error", err)
		return
	}

	e.log.Warn("Зафиксирован конфликт синхронизации",
		"table", op.Table,
		"record_id", op.RecordID,
		"base_version", op.BaseVersion,
		"server_version", resp.ServerVersion,
	)
}

// downloadChanges скачивает серверные изменения и применяет их к
// локальному хранилищу. Записи с локальными несинхронизированными
// изменениями не перезаписываются.
func (e *SyncEngine) downloadChanges(ctx context.Context) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()

	resp, err := e.remote.GetChanges(reqCtx, sync.GetChangesRequest{
		LastSyncTime: e.lastSync,
		Limit:        e.config.BatchSize,
	})
	if err != nil {
		return 0, err
	}

	downloaded := 0
	for _, rec := range resp.Records {
		local, err := e.store.Get(rec.Table, rec.ID)
		if err == nil && local.SyncStatus != ledger.StatusSynced {
			// Локальные изменения еще не выгружены, серверная
			// версия их не затирает
			continue
		}

		err = e.store.applyRemote(rec.Table, &ledger.Record{
			ID:        rec.ID,
			Table:     rec.Table,
			Payload:   rec.Payload,
			Version:   rec.Version,
			Deleted:   rec.Deleted,
			CreatedAt: rec.CreatedAt,
		})
		if err != nil {
			e.log.Warn("Ошибка применения серверной записи",
				"table", rec.Table, "record_id", rec.ID, "error", err)
			continue
		}
		downloaded++
	}

	e.mu.Lock()
	if !resp.ServerTime.IsZero() {
		e.lastSync = resp.ServerTime
	} else {
		e.lastSync = e.clk.Now()
	}
	e.mu.Unlock()
	e.saveMetadata()

	return downloaded, nil
}

// StartAutoSync запускает периодическую синхронизацию до отмены контекста
func (e *SyncEngine) StartAutoSync(ctx context.Context) {
	if e.config.Interval <= 0 {
		e.log.Info("Автоматическая синхронизация отключена")
		return
	}

	e.log.Info("Запуск автоматической синхронизации", "interval", e.config.Interval)

	ticker := e.clk.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("Автоматическая синхронизация остановлена")
			return
		case <-ticker.C():
			if _, err := e.Sync(ctx); err != nil {
				e.log.Error("Ошибка автоматической синхронизации", "error", err)
			}
		}
	}
}

// IsSyncing проверяет, выполняется ли проход
func (e *SyncEngine) IsSyncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isSyncing
}

// LastPass возвращает сводку последнего завершенного прохода
func (e *SyncEngine) LastPass() *ledger.PassResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastPass == nil {
		return nil
	}
	copied := *e.lastPass
	return &copied
}

// LastSyncTime возвращает время последней синхронизации
func (e *SyncEngine) LastSyncTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

func (e *SyncEngine) metadataPath() string {
	return filepath.Join(e.metaDir, "sync_metadata.json")
}

func (e *SyncEngine) loadMetadata() (*syncMetadata, error) {
	if e.metaDir == "" {
		return &syncMetadata{}, nil
	}

	data, err := os.ReadFile(e.metadataPath())
	if err != nil {
		return nil, err
	}

	var meta syncMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("ошибка парсинга метаданных: %w", err)
	}

	return &meta, nil
}

func (e *SyncEngine) saveMetadata() {
	if e.metaDir == "" {
		return
	}

	e.mu.Lock()
	meta := syncMetadata{LastSyncTime: e.lastSync}
	e.mu.Unlock()
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return
	}

	if err := os.WriteFile(e.metadataPath(), data, 0600); err != nil {
		e.log.Warn("Ошибка записи метаданных синхронизации", "error", err)
	}
}

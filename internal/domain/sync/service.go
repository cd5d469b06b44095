package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"tradekeeper/internal/app/server/api/http/middleware/auth"
)

// Servicer — интерфейс сервиса синхронизации
type Servicer interface {
	// Apply применяет одну операцию клиента к серверному состоянию
	Apply(ctx context.Context, req ApplyRequest) (*ApplyResponse, error)

	// GetChanges возвращает изменения после указанного времени
	GetChanges(ctx context.Context, req GetChangesRequest) (*GetChangesResponse, error)

	// GetStatus возвращает текущий статус синхронизации
	GetStatus(ctx context.Context) (*GetStatusResponse, error)

	// GetConflicts возвращает список неразрешенных конфликтов
	GetConflicts(ctx context.Context) ([]Conflict, error)

	// ResolveConflict разрешает указанный конфликт
	ResolveConflict(ctx context.Context, conflictID string, req ResolveConflictRequest) (*ResolveConflictResponse, error)
}

// Service — реализация сервиса синхронизации
type Service struct {
	repo   Repository
	log    *slog.Logger
	config *ServiceConfig
}

// NewService создает новый сервис синхронизации
func NewService(repo Repository, log *slog.Logger, config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{
			BatchSize:      100,
			MaxSyncRecords: 1000,
		}
	}

	return &Service{
		repo:   repo,
		log:    log,
		config: config,
	}
}

// Apply применяет операцию клиента. Несовпадение базовой версии с
// серверной не перезаписывает данные молча: фиксируется конфликт и
// клиенту возвращается серверное состояние.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*ApplyResponse, error) {
	accountID, ok := auth.GetAccountID(ctx)
	if !ok {
		return nil, fmt.Errorf("user not authenticated")
	}

	if req.Table != "trades" && req.Table != "positions" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, req.Table)
	}

	existing, err := s.repo.GetRecord(ctx, accountID, req.Table, req.RecordID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	now := time.Now()

	switch req.OperationType {
	case "create":
		if existing != nil && !existing.Deleted {
			// Запись уже существует — расхождение состояния
			return s.conflictResponse(ctx, accountID, req, existing)
		}
		rec := &ServerRecord{
			ID:        req.RecordID,
			AccountID: accountID,
			Table:     req.Table,
			Payload:   req.Payload,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.SaveRecord(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to save record: %w", err)
		}
		s.touch(ctx, accountID, now)
		return &ApplyResponse{Status: "Ok", Applied: true, ServerVersion: rec.Version}, nil

	case "update":
		if existing == nil || existing.Deleted {
			// Клиент обновляет то, чего на сервере нет
			return s.conflictResponse(ctx, accountID, req, existing)
		}
		if existing.Version != req.BaseVersion {
			return s.conflictResponse(ctx, accountID, req, existing)
		}
		existing.Payload = req.Payload
		existing.Version++
		existing.UpdatedAt = now
		if err := s.repo.SaveRecord(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to save record: %w", err)
		}
		s.touch(ctx, accountID, now)
		return &ApplyResponse{Status: "Ok", Applied: true, ServerVersion: existing.Version}, nil

	case "delete":
		if existing == nil || existing.Deleted {
			// Удаление отсутствующей записи идемпотентно
			s.touch(ctx, accountID, now)
			return &ApplyResponse{Status: "Ok", Applied: true}, nil
		}
		if existing.Version != req.BaseVersion {
			return s.conflictResponse(ctx, accountID, req, existing)
		}
		existing.Deleted = true
		existing.Version++
		existing.UpdatedAt = now
		if err := s.repo.SaveRecord(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to save record: %w", err)
		}
		s.touch(ctx, accountID, now)
		return &ApplyResponse{Status: "Ok", Applied: true, ServerVersion: existing.Version}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidOperation, req.OperationType)
	}
}

func (s *Service) conflictResponse(ctx context.Context, accountID int, req ApplyRequest, existing *ServerRecord) (*ApplyResponse, error) {
	conflict := &Conflict{
		AccountID:     accountID,
		Table:         req.Table,
		RecordID:      req.RecordID,
		ClientPayload: req.Payload,
		BaseVersion:   req.BaseVersion,
		CreatedAt:     time.Now(),
	}

	resp := &ApplyResponse{Status: "Ok", Conflict: true}
	if existing != nil {
		conflict.ServerPayload = existing.Payload
		conflict.ServerVersion = existing.Version
		resp.ServerPayload = existing.Payload
		resp.ServerVersion = existing.Version
	}

	if err := s.repo.SaveConflict(ctx, conflict); err != nil {
		s.log.Warn("Failed to save conflict", "error", err)
	}

	return resp, nil
}

func (s *Service) touch(ctx context.Context, accountID int, at time.Time) {
	if err := s.repo.TouchStatus(ctx, accountID, at); err != nil {
		s.log.Warn("Failed to update sync status", "error", err)
	}
}

// GetChanges возвращает изменения после указанного времени
func (s *Service) GetChanges(ctx context.Context, req GetChangesRequest) (*GetChangesResponse, error) {
	accountID, ok := auth.GetAccountID(ctx)
	if !ok {
		return nil, fmt.Errorf("user not authenticated")
	}

	// Валидация параметров
	if req.Limit <= 0 {
		req.Limit = s.config.BatchSize
	}
	if req.Limit > s.config.MaxSyncRecords {
		req.Limit = s.config.MaxSyncRecords
	}

	records, err := s.repo.ListChangedSince(ctx, accountID, req.LastSyncTime, req.Limit, req.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get records for sync: %w", err)
	}

	now := time.Now()
	s.touch(ctx, accountID, now)

	return &GetChangesResponse{
		Status:     "Ok",
		Records:    records,
		HasMore:    len(records) >= req.Limit,
		ServerTime: now,
	}, nil
}

// GetStatus возвращает текущий статус синхронизации
func (s *Service) GetStatus(ctx context.Context) (*GetStatusResponse, error) {
	accountID, ok := auth.GetAccountID(ctx)
	if !ok {
		return nil, fmt.Errorf("user not authenticated")
	}

	status, err := s.repo.GetStatus(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync status: %w", err)
	}

	total, err := s.repo.CountRecords(ctx, accountID)
	if err == nil {
		status.TotalRecords = total
	}

	conflicts, err := s.repo.ListOpenConflicts(ctx, accountID)
	if err == nil {
		status.OpenConflicts = len(conflicts)
	}

	return &GetStatusResponse{
		Status: "Ok",
		Data:   status,
	}, nil
}

// GetConflicts возвращает список неразрешенных конфликтов
func (s *Service) GetConflicts(ctx context.Context) ([]Conflict, error) {
	accountID, ok := auth.GetAccountID(ctx)
	if !ok {
		return nil, fmt.Errorf("user not authenticated")
	}

	conflicts, err := s.repo.ListOpenConflicts(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conflicts: %w", err)
	}

	return conflicts, nil
}

// ResolveConflict разрешает указанный конфликт
func (s *Service) ResolveConflict(ctx context.Context, conflictID string, req ResolveConflictRequest) (*ResolveConflictResponse, error) {
	accountID, ok := auth.GetAccountID(ctx)
	if !ok {
		return nil, fmt.Errorf("user not authenticated")
	}

	// Проверяем, что конфликт принадлежит пользователю
	conflict, err := s.repo.GetConflictByID(ctx, conflictID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}

	if conflict.AccountID != accountID {
		return nil, fmt.Errorf("conflict does not belong to user")
	}

	// При выборе клиентской или объединенной версии перезаписываем
	// серверную запись
	if req.Resolution == "client" || req.Resolution == "merged" {
		payload := conflict.ClientPayload
		if req.Resolution == "merged" {
			if len(req.ResolvedData) == 0 {
				return nil, fmt.Errorf("merged resolution requires resolved_data")
			}
			payload = req.ResolvedData
		}

		existing, err := s.repo.GetRecord(ctx, accountID, conflict.Table, conflict.RecordID)
		if err != nil && !errors.Is(err, ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to get record: %w", err)
		}

		now := time.Now()
		rec := &ServerRecord{
			ID:        conflict.RecordID,
			AccountID: accountID,
			Table:     conflict.Table,
			Payload:   payload,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if existing != nil {
			rec.Version = existing.Version + 1
			rec.CreatedAt = existing.CreatedAt
		}
		if err := s.repo.SaveRecord(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to save record: %w", err)
		}
	}

	resolvedData := []byte{}
	if len(req.ResolvedData) > 0 {
		resolvedData = req.ResolvedData
	}
	if err := s.repo.ResolveConflict(ctx, conflictID, req.Resolution, resolvedData); err != nil {
		return nil, fmt.Errorf("failed to resolve conflict: %w", err)
	}

	return &ResolveConflictResponse{
		Status:  "Ok",
		Message: "Conflict resolved successfully",
	}, nil
}

package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"golang.org/x/exp/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradekeeper/internal/app/server/api/http/middleware/auth"
)

// fakeRepository — репозиторий в памяти для тестов сервиса.
type fakeRepository struct {
	records   map[string]*ServerRecord
	conflicts map[string]*Conflict
	statuses  map[int]*Status
	nextID    int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		records:   make(map[string]*ServerRecord),
		conflicts: make(map[string]*Conflict),
		statuses:  make(map[int]*Status),
	}
}

func recordKey(accountID int, table, recordID string) string {
	return fmt.Sprintf("%d/%s/%s", accountID, table, recordID)
}

func (r *fakeRepository) GetRecord(_ context.Context, accountID int, table, recordID string) (*ServerRecord, error) {
	rec, ok := r.records[recordKey(accountID, table, recordID)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *fakeRepository) SaveRecord(_ context.Context, rec *ServerRecord) error {
	copied := *rec
	r.records[recordKey(rec.AccountID, rec.Table, rec.ID)] = &copied
	return nil
}

func (r *fakeRepository) ListChangedSince(_ context.Context, accountID int, since time.Time, limit, offset int) ([]ServerRecord, error) {
	var out []ServerRecord
	for _, rec := range r.records {
		if rec.AccountID == accountID && rec.UpdatedAt.After(since) {
			out = append(out, *rec)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepository) CountRecords(_ context.Context, accountID int) (int, error) {
	count := 0
	for _, rec := range r.records {
		if rec.AccountID == accountID && !rec.Deleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeRepository) SaveConflict(_ context.Context, c *Conflict) error {
	if c.ID == "" {
		r.nextID++
		c.ID = fmt.Sprintf("conflict-%d", r.nextID)
	}
	copied := *c
	r.conflicts[c.ID] = &copied
	return nil
}

func (r *fakeRepository) ListOpenConflicts(_ context.Context, accountID int) ([]Conflict, error) {
	var out []Conflict
	for _, c := range r.conflicts {
		if c.AccountID == accountID && !c.Resolved {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeRepository) GetConflictByID(_ context.Context, conflictID string) (*Conflict, error) {
	c, ok := r.conflicts[conflictID]
	if !ok {
		return nil, ErrConflictNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeRepository) ResolveConflict(_ context.Context, conflictID, resolution string, _ []byte) error {
	c, ok := r.conflicts[conflictID]
	if !ok || c.Resolved {
		return ErrConflictNotFound
	}
	now := time.Now()
	c.Resolved = true
	c.Resolution = resolution
	c.ResolvedAt = &now
	return nil
}

func (r *fakeRepository) GetStatus(_ context.Context, accountID int) (*Status, error) {
	if s, ok := r.statuses[accountID]; ok {
		copied := *s
		return &copied, nil
	}
	return &Status{AccountID: accountID}, nil
}

func (r *fakeRepository) TouchStatus(_ context.Context, accountID int, at time.Time) error {
	s, ok := r.statuses[accountID]
	if !ok {
		s = &Status{AccountID: accountID}
		r.statuses[accountID] = s
	}
	s.LastSyncTime = at
	s.SyncVersion++
	return nil
}

func newTestService() (*Service, *fakeRepository) {
	repo := newFakeRepository()
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError + 1,
	}))
	return NewService(repo, log, nil), repo
}

func authCtx(accountID int) context.Context {
	return context.WithValue(context.Background(), auth.AccountIDKey, accountID)
}

func TestService_ApplyCreate(t *testing.T) {
	service, repo := newTestService()
	ctx := authCtx(1)

	resp, err := service.Apply(ctx, ApplyRequest{
		Table:         "trades",
		OperationType: "create",
		RecordID:      "rec-1",
		Payload:       json.RawMessage(`{"qty":1}`),
	})
	require.NoError(t, err)

	assert.True(t, resp.Applied)
	assert.False(t, resp.Conflict)
	assert.Equal(t, 1, resp.ServerVersion)

	rec, err := repo.GetRecord(ctx, 1, "trades", "rec-1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)
}

func TestService_ApplyCreateExistingConflicts(t *testing.T) {
	service, repo := newTestService()
	ctx := authCtx(1)

	require.NoError(t, repo.SaveRecord(ctx, &ServerRecord{
		ID: "rec-1", AccountID: 1, Table: "trades",
		Payload: json.RawMessage(`{"qty":5}`), Version: 3,
	}))

	resp, err := service.Apply(ctx, ApplyRequest{
		Table:         "trades",
		OperationType: "create",
		RecordID:      "rec-1",
		Payload:       json.RawMessage(`{"qty":1}`),
	})
	require.NoError(t, err)

	assert.False(t, resp.Applied)
	assert.True(t, resp.Conflict)
	assert.JSONEq(t, `{"qty":5}`, string(resp.ServerPayload))
	assert.Equal(t, 3, resp.ServerVersion)

	conflicts, err := repo.ListOpenConflicts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "rec-1", conflicts[0].RecordID)
}

func TestService_ApplyUpdate(t *testing.T) {
	service, repo := newTestService()
	ctx := authCtx(1)

	require.NoError(t, repo.SaveRecord(ctx, &ServerRecord{
		ID: "rec-1", AccountID: 1, Table: "trades",
		Payload: json.RawMessage(`{"qty":1}`), Version: 2,
	}))

	t.Run("MatchingVersion", func(t *testing.T) {
		resp, err := service.Apply(ctx, ApplyRequest{
			Table:         "trades",
			OperationType: "update",
			RecordID:      "rec-1",
			Payload:       json.RawMessage(`{"qty":2}`),
			BaseVersion:   2,
		})
		require.NoError(t, err)
		assert.True(t, resp.Applied)
		assert.Equal(t, 3, resp.ServerVersion)
	})

	t.Run("StaleVersion", func(t *testing.T) {
		resp, err := service.Apply(ctx, ApplyRequest{
			Table:         "trades",
			OperationType: "update",
			RecordID:      "rec-1",
			Payload:       json.RawMessage(`{"qty":9}`),
			BaseVersion:   2,
		})
		require.NoError(t, err)
		assert.True(t, resp.Conflict)
		assert.Equal(t, 3, resp.ServerVersion)

		// Серверные данные молча не перезаписаны
		rec, err := repo.GetRecord(ctx, 1, "trades", "rec-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"qty":2}`, string(rec.Payload))
	})

	t.Run("MissingRecord", func(t *testing.T) {
		resp, err := service.Apply(ctx, ApplyRequest{
			Table:         "trades",
			OperationType: "update",
			RecordID:      "no-such",
			Payload:       json.RawMessage(`{"qty":1}`),
			BaseVersion:   1,
		})
		require.NoError(t, err)
		assert.True(t, resp.Conflict)
	})
}

func TestService_ApplyDelete(t *testing.T) {
	service, repo := newTestService()
	ctx := authCtx(1)

	require.NoError(t, repo.SaveRecord(ctx, &ServerRecord{
		ID: "rec-1", AccountID: 1, Table: "trades",
		Payload: json.RawMessage(`{"qty":1}`), Version: 1,
	}))

	resp, err := service.Apply(ctx, ApplyRequest{
		Table:         "trades",
		OperationType: "delete",
		RecordID:      "rec-1",
		BaseVersion:   1,
	})
	require.NoError(t, err)
	assert.True(t, resp.Applied)

	rec, err := repo.GetRecord(ctx, 1, "trades", "rec-1")
	require.NoError(t, err)
	assert.True(t, rec.Deleted)

	// Удаление отсутствующей записи идемпотентно
	resp, err = service.Apply(ctx, ApplyRequest{
		Table:         "trades",
		OperationType: "delete",
		RecordID:      "no-such",
		BaseVersion:   1,
	})
	require.NoError(t, err)
	assert.True(t, resp.Applied)
	assert.False(t, resp.Conflict)
}

func TestService_ApplyValidation(t *testing.T) {
	service, _ := newTestService()

	t.Run("UnknownTable", func(t *testing.T) {
		_, err := service.Apply(authCtx(1), ApplyRequest{
			Table:         "accounts",
			OperationType: "create",
			RecordID:      "rec-1",
		})
		assert.ErrorIs(t, err, ErrUnknownTable)
	})

	t.Run("InvalidOperation", func(t *testing.T) {
		_, err := service.Apply(authCtx(1), ApplyRequest{
			Table:         "trades",
			OperationType: "merge",
			RecordID:      "rec-1",
		})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		_, err := service.Apply(context.Background(), ApplyRequest{
			Table:         "trades",
			OperationType: "create",
			RecordID:      "rec-1",
		})
		assert.Error(t, err)
	})
}

func TestService_GetChanges(t *testing.T) {
	service, repo := newTestService()
	ctx := authCtx(1)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.SaveRecord(ctx, &ServerRecord{
			ID:        fmt.Sprintf("rec-%d", i),
			AccountID: 1,
			Table:     "trades",
			Payload:   json.RawMessage(`{}`),
			Version:   1,
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	// Записи другого аккаунта не отдаются
	require.NoError(t, repo.SaveRecord(ctx, &ServerRecord{
		ID: "other", AccountID: 2, Table: "trades",
		Payload: json.RawMessage(`{}`), Version: 1, UpdatedAt: base,
	}))

	resp, err := service.GetChanges(ctx, GetChangesRequest{
		LastSyncTime: base.Add(30 * time.Second),
	})
	require.NoError(t, err)

	assert.Equal(t, "Ok", resp.Status)
	assert.Len(t, resp.Records, 2)
	assert.False(t, resp.ServerTime.IsZero())
	for _, rec := range resp.Records {
		assert.Equal(t, 1, rec.AccountID)
	}
}

func TestService_GetStatus(t *testing.T) {
	service, repo := newTestService()
	ctx := authCtx(1)

	require.NoError(t, repo.SaveRecord(ctx, &ServerRecord{
		ID: "rec-1", AccountID: 1, Table: "trades",
		Payload: json.RawMessage(`{}`), Version: 1,
	}))
	require.NoError(t, repo.SaveConflict(ctx, &Conflict{AccountID: 1, Table: "trades", RecordID: "rec-1"}))
	require.NoError(t, repo.TouchStatus(ctx, 1, time.Now()))

	resp, err := service.GetStatus(ctx)
	require.NoError(t, err)

	require.NotNil(t, resp.Data)
	assert.Equal(t, 1, resp.Data.TotalRecords)
	assert.Equal(t, 1, resp.Data.OpenConflicts)
	assert.False(t, resp.Data.LastSyncTime.IsZero())
}

func TestService_ResolveConflict(t *testing.T) {
	service, repo := newTestService()
	ctx := authCtx(1)

	require.NoError(t, repo.SaveRecord(ctx, &ServerRecord{
		ID: "rec-1", AccountID: 1, Table: "trades",
		Payload: json.RawMessage(`{"qty":5}`), Version: 3,
	}))
	conflict := &Conflict{
		AccountID:     1,
		Table:         "trades",
		RecordID:      "rec-1",
		ClientPayload: json.RawMessage(`{"qty":2}`),
		BaseVersion:   2,
		ServerVersion: 3,
	}
	require.NoError(t, repo.SaveConflict(ctx, conflict))

	t.Run("NotOwner", func(t *testing.T) {
		_, err := service.ResolveConflict(authCtx(2), conflict.ID, ResolveConflictRequest{Resolution: "server"})
		assert.Error(t, err)
	})

	t.Run("MergedRequiresData", func(t *testing.T) {
		_, err := service.ResolveConflict(ctx, conflict.ID, ResolveConflictRequest{Resolution: "merged"})
		assert.Error(t, err)
	})

	t.Run("ClientWins", func(t *testing.T) {
		resp, err := service.ResolveConflict(ctx, conflict.ID, ResolveConflictRequest{Resolution: "client"})
		require.NoError(t, err)
		assert.Equal(t, "Ok", resp.Status)

		// Серверная запись перезаписана клиентской версией
		rec, err := repo.GetRecord(ctx, 1, "trades", "rec-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"qty":2}`, string(rec.Payload))
		assert.Equal(t, 4, rec.Version)

		open, err := repo.ListOpenConflicts(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, open)
	})

	t.Run("AlreadyResolved", func(t *testing.T) {
		_, err := service.ResolveConflict(ctx, conflict.ID, ResolveConflictRequest{Resolution: "server"})
		assert.Error(t, err)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := service.ResolveConflict(ctx, "no-such", ResolveConflictRequest{Resolution: "server"})
		assert.ErrorIs(t, err, ErrConflictNotFound)
	})
}

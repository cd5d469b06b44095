package sync

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"tradekeeper/internal/domain/sync"
)

type Handler struct {
	service    sync.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service sync.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.applyOp(), h.apply)
	huma.Register(api, h.getChangesOp(), h.getChanges)
	huma.Register(api, h.getStatusOp(), h.getStatus)
	huma.Register(api, h.getConflictsOp(), h.getConflicts)
	huma.Register(api, h.resolveConflictOp(), h.resolveConflict)
}

func (h *Handler) apply(ctx context.Context, input *applyInput) (*applyOutput, error) {
	resp, err := h.service.Apply(ctx, input.Body)
	if err != nil {
		h.log.Error("apply operation", "error", err, "table", input.Body.Table, "record_id", input.Body.RecordID)
		return &applyOutput{
			Body: sync.ApplyResponse{Status: "Error", Error: err.Error()},
		}, nil
	}

	return &applyOutput{Body: *resp}, nil
}

func (h *Handler) getChanges(ctx context.Context, input *getChangesInput) (*getChangesOutput, error) {
	resp, err := h.service.GetChanges(ctx, input.Body)
	if err != nil {
		h.log.Error("get changes", "error", err)
		return &getChangesOutput{
			Body: sync.GetChangesResponse{Status: "Error", Error: err.Error()},
		}, nil
	}

	return &getChangesOutput{Body: *resp}, nil
}

func (h *Handler) getStatus(ctx context.Context, _ *getStatusInput) (*getStatusOutput, error) {
	resp, err := h.service.GetStatus(ctx)
	if err != nil {
		h.log.Error("get sync status", "error", err)
		return &getStatusOutput{
			Body: sync.GetStatusResponse{Status: "Error", Error: err.Error()},
		}, nil
	}

	return &getStatusOutput{Body: *resp}, nil
}

func (h *Handler) getConflicts(ctx context.Context, _ *getConflictsInput) (*getConflictsOutput, error) {
	conflicts, err := h.service.GetConflicts(ctx)
	if err != nil {
		h.log.Error("get conflicts", "error", err)
		return &getConflictsOutput{
			Body: sync.GetConflictsResponse{Status: "Error", Error: err.Error()},
		}, nil
	}

	return &getConflictsOutput{
		Body: sync.GetConflictsResponse{Status: "Ok", Data: conflicts},
	}, nil
}

func (h *Handler) resolveConflict(ctx context.Context, input *resolveConflictInput) (*resolveConflictOutput, error) {
	resp, err := h.service.ResolveConflict(ctx, input.ID, input.Body)
	if err != nil {
		h.log.Error("resolve conflict", "error", err, "conflict_id", input.ID)
		return &resolveConflictOutput{
			Body: sync.ResolveConflictResponse{Status: "Error", Error: err.Error()},
		}, nil
	}

	return &resolveConflictOutput{Body: *resp}, nil
}

package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) applyOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-apply",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/apply",
		Summary:     "Применить операцию клиента",
		Description: "Применяет одну операцию (create/update/delete) к серверному состоянию с проверкой версии",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) getChangesOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-get-changes",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/changes",
		Summary:     "Получить изменения для синхронизации",
		Description: "Возвращает записи, измененные после указанного времени",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) getStatusOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-get-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/status",
		Summary:     "Получить статус синхронизации",
		Description: "Возвращает текущий статус синхронизации пользователя",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) getConflictsOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-get-conflicts",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/conflicts",
		Summary:     "Получить конфликты синхронизации",
		Description: "Возвращает список неразрешенных конфликтов",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) resolveConflictOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-resolve-conflict",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/conflicts/{id}/resolve",
		Summary:     "Разрешить конфликт синхронизации",
		Description: "Разрешает указанный конфликт",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}

package sync

import (
	"tradekeeper/internal/domain/sync"
)

// Request/Response структуры для Apply
type applyInput struct {
	Body sync.ApplyRequest
}

type applyOutput struct {
	Body sync.ApplyResponse
}

// Request/Response структуры для GetChanges
type getChangesInput struct {
	Body sync.GetChangesRequest
}

type getChangesOutput struct {
	Body sync.GetChangesResponse
}

// Request/Response для GetStatus
type getStatusInput struct {
}

type getStatusOutput struct {
	Body sync.GetStatusResponse
}

// Request/Response для GetConflicts
type getConflictsInput struct {
}

type getConflictsOutput struct {
	Body sync.GetConflictsResponse
}

// Request/Response для ResolveConflict
type resolveConflictInput struct {
	ID   string `path:"id"`
	Body sync.ResolveConflictRequest
}

type resolveConflictOutput struct {
	Body sync.ResolveConflictResponse
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	gosync "sync"
	"time"

	"golang.org/x/exp/slog"

	"tradekeeper/internal/app/client/config"
	"tradekeeper/internal/domain/ledger"
	"tradekeeper/internal/domain/sync"
	"tradekeeper/internal/domain/user"
)

type httpClient struct {
	client    *http.Client
	config    *config.Config
	log       *slog.Logger
	baseURL   string
	userAgent string

	// Токен переустанавливается при входе, пока фоновые процессы
	// ходят в сеть
	mu    gosync.RWMutex
	token string
}

func NewHTTPClient(cfg *config.Config, log *slog.Logger) (*httpClient, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			DisableCompression:  false,
			DisableKeepAlives:   false,
			MaxIdleConnsPerHost: 10,
		},
	}

	// Определяем протокол
	scheme := "http://"
	if cfg.EnableTLS {
		scheme = "https://"
	}
	baseURL := scheme + cfg.ServerAddress

	return &httpClient{
		client:    client,
		config:    cfg,
		log:       log,
		baseURL:   baseURL,
		userAgent: "Tradekeeper-Client/1.0",
	}, nil
}

// SetToken устанавливает токен аутентификации
func (h *httpClient) SetToken(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

// Token возвращает текущий токен аутентификации
func (h *httpClient) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// HealthCheck проверяет доступность сервера
func (h *httpClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", h.baseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("сервер недоступен: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервер вернул статус: %d", resp.StatusCode)
	}

	return nil
}

func (h *httpClient) Register(ctx context.Context, login, password string) error {
	req := user.BaseRequest{
		Login:    login,
		Password: password,
	}

	resp, err := h.doRequest(ctx, "POST", "/api/v1/auth/register", req)
	if err != nil {
		return err
	}

	var regResp struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	if err := h.parseResponse(resp, &regResp); err != nil {
		return err
	}
	if regResp.Status == "Error" {
		return fmt.Errorf("ошибка сервера: %s", regResp.Error)
	}

	return nil
}

func (h *httpClient) Login(ctx context.Context, login, password string) (string, error) {
	req := user.BaseRequest{
		Login:    login,
		Password: password,
	}

	resp, err := h.doRequest(ctx, "POST", "/api/v1/auth/login", req)
	if err != nil {
		return "", err
	}

	var loginResp struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
		Token  string `json:"token,omitempty"`
	}

	if err := h.parseResponse(resp, &loginResp); err != nil {
		return "", err
	}
	if loginResp.Status == "Error" {
		return "", fmt.Errorf("ошибка сервера: %s", loginResp.Error)
	}

	h.SetToken(loginResp.Token)
	return loginResp.Token, nil
}

// Apply отправляет одну операцию очереди на сервер. Сетевые ошибки и
// 5xx классифицируются как временные, 4xx — как постоянные.
func (h *httpClient) Apply(ctx context.Context, req sync.ApplyRequest) (*sync.ApplyResponse, error) {
	resp, err := h.doRequest(ctx, "POST", "/api/v1/sync/apply", req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrTransientSync, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: сервер вернул статус %d", ledger.ErrTransientSync, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: сервер вернул статус %d", ledger.ErrPermanentSync, resp.StatusCode)
	}

	var result sync.ApplyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: ошибка парсинга ответа: %v", ledger.ErrPermanentSync, err)
	}

	if result.Status == "Error" {
		return nil, fmt.Errorf("%w: %s", ledger.ErrPermanentSync, result.Error)
	}

	return &result, nil
}

// GetChanges получает изменения с сервера
func (h *httpClient) GetChanges(ctx context.Context, req sync.GetChangesRequest) (*sync.GetChangesResponse, error) {
	resp, err := h.doRequest(ctx, "POST", "/api/v1/sync/changes", req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrTransientSync, err)
	}

	var result sync.GetChangesResponse
	if err := h.parseResponse(resp, &result); err != nil {
		return nil, err
	}

	if result.Status == "Error" {
		return nil, fmt.Errorf("ошибка сервера: %s", result.Error)
	}

	return &result, nil
}

// GetSyncStatus получает статус синхронизации с сервера
func (h *httpClient) GetSyncStatus(ctx context.Context) (*sync.Status, error) {
	resp, err := h.doRequest(ctx, "GET", "/api/v1/sync/status", nil)
	if err != nil {
		return nil, err
	}

	var result sync.GetStatusResponse
	if err := h.parseResponse(resp, &result); err != nil {
		return nil, err
	}

	if result.Status == "Error" {
		return nil, fmt.Errorf("ошибка сервера: %s", result.Error)
	}

	return result.Data, nil
}

// GetConflicts получает серверные конфликты
func (h *httpClient) GetConflicts(ctx context.Context) ([]sync.Conflict, error) {
	resp, err := h.doRequest(ctx, "GET", "/api/v1/sync/conflicts", nil)
	if err != nil {
		return nil, err
	}

	var result sync.GetConflictsResponse
	if err := h.parseResponse(resp, &result); err != nil {
		return nil, err
	}

	if result.Status == "Error" {
		return nil, fmt.Errorf("ошибка сервера: %s", result.Error)
	}

	return result.Data, nil
}

// ResolveConflict разрешает конфликт на сервере
func (h *httpClient) ResolveConflict(ctx context.Context, conflictID string, req sync.ResolveConflictRequest) error {
	resp, err := h.doRequest(ctx, "POST", "/api/v1/sync/conflicts/"+conflictID+"/resolve", req)
	if err != nil {
		return err
	}

	var result sync.ResolveConflictResponse
	if err := h.parseResponse(resp, &result); err != nil {
		return err
	}

	if result.Status == "Error" {
		return fmt.Errorf("ошибка сервера: %s", result.Error)
	}

	return nil
}

func (h *httpClient) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	// Добавляем заголовки
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	if token := h.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	h.log.Debug("Отправка запроса",
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}

	return resp, nil
}

func (h *httpClient) parseResponse(resp *http.Response, result interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	h.log.Debug("Получен ответ",
		"status", resp.StatusCode,
		"body", string(body),
	)

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("ошибка сервера: %s", errResp.Error)
		}
		return fmt.Errorf("ошибка сервера: статус %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}

	return nil
}

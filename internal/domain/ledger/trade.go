package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// Trade — сделка в локальном журнале.
type Trade struct {
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"` // buy, sell
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	ExecutedAt time.Time `json:"executed_at"`
	Note       string    `json:"note,omitempty"`
}

// Position — позиция портфеля.
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}

// Quote — кэшированная котировка. Хранится только локально.
type Quote struct {
	Symbol   string    `json:"symbol"`
	Price    float64   `json:"price"`
	AsOf     time.Time `json:"as_of"`
	Provider string    `json:"provider,omitempty"`
}

// Validate проверяет обязательные поля сделки.
func (t *Trade) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("пустой тикер")
	}
	if t.Side != "buy" && t.Side != "sell" {
		return fmt.Errorf("неизвестное направление сделки: %s", t.Side)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("количество должно быть положительным")
	}
	if t.Price < 0 {
		return fmt.Errorf("цена не может быть отрицательной")
	}
	return nil
}

// Marshal сериализует доменный объект в payload записи.
func Marshal(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации: %w", err)
	}
	return data, nil
}

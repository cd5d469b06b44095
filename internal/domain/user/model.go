package user

import "time"

// User — аккаунт владельца журнала сделок.
type User struct {
	ID        int       `json:"id"`
	Login     string    `json:"login"`
	Password  string    `json:"-"` // bcrypt-хэш
	CreatedAt time.Time `json:"created_at"`
}

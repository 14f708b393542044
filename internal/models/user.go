package models

type contextKey string

// UserContextKey is the key for the authenticated admin in a request context.
const UserContextKey = contextKey("user")

// Admin is a Telegram user allowed to manage the show.
type Admin struct {
	TelegramID int64
	Username   string
}

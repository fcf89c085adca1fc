package models

import "errors"

var (
	ErrChatNotFound     = errors.New("chat not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrEmptyMessage     = errors.New("message text is empty")
	ErrUnauthorized     = errors.New("not a member of this chat")
	ErrOwnerLeft        = errors.New("chat owner left the group")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ErrorCode maps an error to the stable code carried by the error event.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrChatNotFound):
		return "chat_not_found"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal_error"
	}
}

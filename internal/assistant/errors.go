package assistant

import (
	"fmt"
	"time"
)

// ValidationError reports malformed or out-of-range input. The message is
// user-facing.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports a missing user or message.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// RateLimitError reports a rejected request with the remaining wait.
type RateLimitError struct {
	ResetAfter time.Duration
}

func (e *RateLimitError) Error() string {
	minutes := int(e.ResetAfter / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("لقد تجاوزت الحد المسموح به من الطلبات. يرجى المحاولة بعد %d دقائق.", minutes)
}

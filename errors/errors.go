package errors

import "fmt"

var (
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrNotMember        = fmt.Errorf("not a member")
	ErrNotParticipant   = fmt.Errorf("not a participant")
	ErrNotAllowed       = fmt.Errorf("not allowed")
	ErrRateLimited      = fmt.Errorf("rate limit exceeded")
	ErrTopicNotFound    = fmt.Errorf("topic not found")
	ErrMessageNotFound  = fmt.Errorf("message not found")
	ErrUserNotFound     = fmt.Errorf("user not found")
	ErrInvalidPayload   = fmt.Errorf("invalid payload")
	ErrInvalidTopicRef  = fmt.Errorf("invalid topic reference")
	ErrUnknownOp        = fmt.Errorf("unknown operation")
	ErrAttachmentType   = fmt.Errorf("attachment type mismatch")
	ErrEmptyWords       = fmt.Errorf("no words have been found")
)

package server

import (
	"errors"
	"fmt"
)

var (
	ErrSessionClosed    = errors.New("session closed")
	ErrConnectionClosed = errors.New("connection closed by peer")
	ErrIdle             = errors.New("idle timeout")
	ErrKicked           = errors.New("kicked by admin")
	ErrShutdown         = errors.New("server shutting down")
)

// ValidationError 动作格式正确，但在当前会话状态下不允许（例如未 Join 就 Move、重复 Join）
type ValidationError struct {
	Action string
	State  State
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s not allowed while %s: %s", e.Action, e.State, e.Reason)
}

// Package fault defines the error taxonomy shared by the orchestration core
// and its collaborators.
package fault

import (
	"errors"
	"fmt"
)

// Sentinel errors. Collaborators return these (usually wrapped) so the core
// can classify failures with errors.Is without inspecting messages.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates the actor is not allowed to access the entity.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrLLM indicates a completion-backend failure (rate limit, timeout,
	// malformed response). The core never retries these.
	ErrLLM = errors.New("llm error")
	// ErrTimeout indicates the total orchestration wall-clock budget expired.
	ErrTimeout = errors.New("orchestration timeout")
	// ErrInvalidInput indicates malformed orchestration input.
	ErrInvalidInput = errors.New("invalid input")
)

// NotFound wraps ErrNotFound with a description of the missing entity.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// PermissionDenied wraps ErrPermissionDenied for an actor/entity pair.
func PermissionDenied(actor, entity string) error {
	return fmt.Errorf("actor %s on %s: %w", actor, entity, ErrPermissionDenied)
}

// LLM wraps ErrLLM around a backend failure.
func LLM(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrLLM, err)
}

// IsHard reports whether err is a hard context-assembly failure that must
// abort orchestration (chat not found or access denied).
func IsHard(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermissionDenied)
}

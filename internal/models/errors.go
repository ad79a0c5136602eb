package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("achievement not found")
	ErrNoSnapshot      = errors.New("no progress snapshot")
	ErrBatchInProgress = errors.New("reward batch already in progress")
	ErrNoOpenBatch     = errors.New("no open reward batch")
	ErrNotCompleted    = errors.New("achievement not completed")
	ErrAlreadyClaimed  = errors.New("reward already claimed")
)

// LoadError reports a missing or malformed catalog source. The catalog falls
// back to its built-in definitions when it is returned.
type LoadError struct {
	Path     string
	Fallback bool
	Err      error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("load catalog %s: %v", e.Path, e.Err)
	if e.Fallback {
		msg += " (using built-in definitions)"
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

// ValidationError reports a schema violation of a definition, event or
// reward bundle
type ValidationError struct {
	Subject string
	Reason  string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Subject, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Subject, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PersistenceError reports an I/O failure while saving or loading progress
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("progress %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DispatchError reports a failure granting a single reward
type DispatchError struct {
	AchievementID string
	Reward        RewardSpec
	Err           error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("grant %s for %s: %v", e.Reward, e.AchievementID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// EvaluationError reports a failure evaluating one achievement against one event
type EvaluationError struct {
	AchievementID string
	ConditionID   string
	Err           error
}

func (e *EvaluationError) Error() string {
	if e.ConditionID != "" {
		return fmt.Sprintf("evaluate %s (condition %s): %v", e.AchievementID, e.ConditionID, e.Err)
	}
	return fmt.Sprintf("evaluate %s: %v", e.AchievementID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

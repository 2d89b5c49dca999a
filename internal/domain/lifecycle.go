package domain

import "fmt"

// transitions lists the legal next states for each status. Staying in the
// same status is always allowed and is handled separately.
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusInProgress},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusFailed},
}

// ValidateTransition reports whether requested is a legal next status for
// current: pending→in_progress, in_progress→completed, in_progress→failed,
// or an idempotent re-assignment of the current status.
func ValidateTransition(current, requested TaskStatus) bool {
	if !current.IsValid() || !requested.IsValid() {
		return false
	}
	if current == requested {
		return true
	}
	for _, next := range transitions[current] {
		if next == requested {
			return true
		}
	}
	return false
}

// CheckTransition is ValidateTransition returning a descriptive error.
func CheckTransition(current, requested TaskStatus) error {
	if !requested.IsValid() {
		return NewValidationError("status", "is not a known status", ErrInvalidStatus)
	}
	if !ValidateTransition(current, requested) {
		return NewValidationError(
			"status",
			fmt.Sprintf("cannot change from %s to %s", current, requested),
			ErrInvalidTransition,
		)
	}
	return nil
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *int
	Status      *TaskStatus
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.Status == nil
}

// ApplyPatch applies the present fields of p to t. Every present field is
// validated before any is written, so a rejected patch leaves t unchanged.
//
// recordStatus is true whenever p carries a status, including a re-assignment
// of the current one; the caller must append exactly one audit entry for it.
// Other fields never require an audit entry. UpdatedAt is left to the store.
func (t *Task) ApplyPatch(p TaskPatch) (recordStatus bool, err error) {
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return false, err
		}
	}
	if p.Priority != nil {
		if err := validatePriority(*p.Priority); err != nil {
			return false, err
		}
	}
	if p.Status != nil {
		if err := CheckTransition(t.Status, *p.Status); err != nil {
			return false, err
		}
	}

	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
		recordStatus = true
	}

	return recordStatus, nil
}

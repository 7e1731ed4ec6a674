package services

import (
	"github.com/vsinha/prodplan/pkg/domain/entities"
)

// RollupRunStatus derives a run's status from the statuses of its operations.
// A queued operation has not started yet. Draft and cancelled runs, and runs
// without operations, keep their current status.
func RollupRunStatus(current entities.RunStatus, statuses []entities.OperationStatus) entities.RunStatus {
	if current == entities.RunDraft || current == entities.RunCancelled || len(statuses) == 0 {
		return current
	}

	notStarted, terminal := 0, 0
	for _, s := range statuses {
		switch {
		case s == entities.OperationPending || s == entities.OperationQueued:
			notStarted++
		case s.IsTerminal():
			terminal++
		}
	}

	switch {
	case terminal == len(statuses):
		return entities.RunComplete
	case notStarted == len(statuses):
		return entities.RunReleased
	default:
		return entities.RunInProgress
	}
}

// OperationStatuses collects the statuses of ops
func OperationStatuses(ops []*entities.Operation) []entities.OperationStatus {
	statuses := make([]entities.OperationStatus, 0, len(ops))
	for _, op := range ops {
		statuses = append(statuses, op.Status)
	}
	return statuses
}

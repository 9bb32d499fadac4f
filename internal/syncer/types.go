package syncer

import (
	"errors"
	"time"

	"github.com/itcpr/cloudsync/internal/execshell"
	"github.com/itcpr/cloudsync/internal/gitrepo"
	"github.com/itcpr/cloudsync/internal/remoteapi"
)

// OutcomeKind classifies the terminal state of a repository sync.
type OutcomeKind string

// Repository sync outcomes.
const (
	// OutcomeUpToDate reports that no mutation was required.
	OutcomeUpToDate OutcomeKind = OutcomeKind("up_to_date")
	// OutcomeSynced reports that local and remote were reconciled.
	OutcomeSynced OutcomeKind = OutcomeKind("synced")
	// OutcomeConflict reports divergence that requires manual resolution.
	OutcomeConflict OutcomeKind = OutcomeKind("conflict")
	// OutcomeError reports a failure unrelated to conflicting history.
	OutcomeError OutcomeKind = OutcomeKind("error")
)

// SyncAction identifies a mutation attempted during a repository sync.
type SyncAction string

// Sync actions in the order the orchestrator applies them.
const (
	SyncActionFetch      SyncAction = SyncAction("fetch")
	SyncActionCommit     SyncAction = SyncAction("commit")
	SyncActionPullRebase SyncAction = SyncAction("pull_rebase")
	SyncActionPush       SyncAction = SyncAction("push")
)

// FailureReason classifies the cause of an error or conflict outcome.
type FailureReason string

// Failure reasons derived from the underlying error types.
const (
	FailureReasonNone              FailureReason = FailureReason("")
	FailureReasonMergeConflict     FailureReason = FailureReason("merge_conflict")
	FailureReasonDivergedHistory   FailureReason = FailureReason("diverged_history")
	FailureReasonNotARepository    FailureReason = FailureReason("not_a_repository")
	FailureReasonTimeout           FailureReason = FailureReason("timeout")
	FailureReasonCommandFailed     FailureReason = FailureReason("command_failed")
	FailureReasonRemoteUnavailable FailureReason = FailureReason("remote_unavailable")
	FailureReasonUnknown           FailureReason = FailureReason("unknown")
)

// Outcome records the result of syncing a single repository.
type Outcome struct {
	RepositoryName string
	Actions        []SyncAction
	Kind           OutcomeKind
	Reason         FailureReason
	Err            error
}

// PassSummary aggregates the outcomes of one sync pass.
type PassSummary struct {
	Outcomes []Outcome
}

// FailureCount counts outcomes that require operator attention.
func (summary PassSummary) FailureCount() int {
	failureCount := 0
	for _, outcome := range summary.Outcomes {
		if outcome.Kind == OutcomeConflict || outcome.Kind == OutcomeError {
			failureCount++
		}
	}
	return failureCount
}

// Clock abstracts wall clock access for sync timestamping.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock against the system time.
type SystemClock struct{}

// Now reports the current system time.
func (clock SystemClock) Now() time.Time {
	return time.Now()
}

func classifyFailure(failure error) FailureReason {
	if failure == nil {
		return FailureReasonNone
	}

	var conflictError gitrepo.MergeConflictError
	if errors.As(failure, &conflictError) {
		return FailureReasonMergeConflict
	}
	var repositoryError gitrepo.NotARepositoryError
	if errors.As(failure, &repositoryError) {
		return FailureReasonNotARepository
	}
	var timeoutError execshell.CommandTimedOutError
	if errors.As(failure, &timeoutError) {
		return FailureReasonTimeout
	}
	var commandError execshell.CommandFailedError
	if errors.As(failure, &commandError) {
		return FailureReasonCommandFailed
	}
	var executionError execshell.CommandExecutionError
	if errors.As(failure, &executionError) {
		return FailureReasonCommandFailed
	}
	var unavailableError remoteapi.RemoteUnavailableError
	if errors.As(failure, &unavailableError) {
		return FailureReasonRemoteUnavailable
	}
	return FailureReasonUnknown
}

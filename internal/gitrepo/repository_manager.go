package gitrepo

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/itcpr/cloudsync/internal/execshell"
)

const (
	gitExecutorNotConfiguredMessageConstant = "git executor not configured"
	fileSystemNotConfiguredMessageConstant  = "file system not configured"
	revParseCommandConstant                 = "rev-parse"
	insideWorkTreeFlagConstant              = "--is-inside-work-tree"
	abbreviatedReferenceFlagConstant        = "--abbrev-ref"
	verifyFlagConstant                      = "--verify"
	quietFlagConstant                       = "--quiet"
	headReferenceConstant                   = "HEAD"
	statusCommandConstant                   = "status"
	porcelainFlagConstant                   = "--porcelain"
	fetchCommandConstant                    = "fetch"
	pullCommandConstant                     = "pull"
	rebaseFlagConstant                      = "--rebase"
	revListCommandConstant                  = "rev-list"
	countFlagConstant                       = "--count"
	addCommandConstant                      = "add"
	allPathsFlagConstant                    = "-A"
	commitCommandConstant                   = "commit"
	commitMessageFlagConstant               = "-m"
	pushCommandConstant                     = "push"
	remoteCommandConstant                   = "remote"
	remoteGetURLSubcommandConstant          = "get-url"
	cloneCommandConstant                    = "clone"
	originRemoteNameConstant                = "origin"
	upstreamReferenceSuffixConstant         = "@{upstream}"
	trueOutputLiteralConstant               = "true"
	revisionRangeSeparatorConstant          = ".."
	remoteReferenceSeparatorConstant        = "/"
	conflictMarkerLiteralConstant           = "conflict"
	clonedDirectoryPermissionsConstant      = 0o755
)

var (
	// ErrGitExecutorNotConfigured indicates the manager was constructed without an executor.
	ErrGitExecutorNotConfigured = errors.New(gitExecutorNotConfiguredMessageConstant)
	// ErrFileSystemNotConfigured indicates the manager was constructed without a file system.
	ErrFileSystemNotConfigured = errors.New(fileSystemNotConfiguredMessageConstant)
)

// GitExecutor runs git commands on behalf of the repository manager.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryStatus reports the reconciliation-relevant state of a working copy.
type RepositoryStatus struct {
	// WorktreeClean reports whether the porcelain status produced no entries.
	WorktreeClean bool
	// AheadCount counts local commits absent from the tracking reference.
	AheadCount int
	// BehindCount counts tracking reference commits absent locally.
	BehindCount int
	// CurrentBranch holds the abbreviated HEAD reference.
	CurrentBranch string
	// TrackingReference names the remote reference the counts were derived from.
	// Empty when no remote reference could be verified.
	TrackingReference string
	// TrackingAssumed reports that no upstream was configured and the origin
	// branch of the same name was substituted.
	TrackingAssumed bool
	// StatusOutput preserves the raw porcelain listing for display surfaces.
	StatusOutput string
}

// RepositoryManager drives the git executable to inspect and mutate working copies.
type RepositoryManager struct {
	executor   GitExecutor
	fileSystem FileSystem
}

// NewRepositoryManager constructs a RepositoryManager from the provided collaborators.
func NewRepositoryManager(executor GitExecutor, fileSystem FileSystem) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	if fileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	return &RepositoryManager{executor: executor, fileSystem: fileSystem}, nil
}

// IsRepository reports whether the supplied path sits inside a git work tree.
func (manager *RepositoryManager) IsRepository(executionContext context.Context, repositoryPath string) bool {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{revParseCommandConstant, insideWorkTreeFlagConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return false
	}
	return strings.TrimSpace(executionResult.StandardOutput) == trueOutputLiteralConstant
}

// Clone clones the remote into the destination path, embedding the access
// token into the clone URL when one is supplied. The destination must not
// exist; its parent directory is created on demand and the result is verified
// before returning.
func (manager *RepositoryManager) Clone(executionContext context.Context, remoteURL string, destinationPath string, accessToken string) error {
	if manager.fileSystem.PathExists(destinationPath) {
		return AlreadyExistsError{Path: destinationPath}
	}

	parentDirectory := filepath.Dir(destinationPath)
	if directoryError := manager.fileSystem.MakeDirectoryAll(parentDirectory, clonedDirectoryPermissionsConstant); directoryError != nil {
		return directoryError
	}

	cloneURL := WithAccessToken(remoteURL, accessToken)
	destinationName := filepath.Base(destinationPath)

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{cloneCommandConstant, cloneURL, destinationName},
		WorkingDirectory: parentDirectory,
	})
	if executionError != nil {
		return executionError
	}

	if !manager.fileSystem.PathExists(destinationPath) {
		return CloneVerificationError{Path: destinationPath}
	}
	return nil
}

// Fetch updates remote tracking references from origin.
func (manager *RepositoryManager) Fetch(executionContext context.Context, repositoryPath string) error {
	if !manager.IsRepository(executionContext, repositoryPath) {
		return NotARepositoryError{Path: repositoryPath}
	}
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{fetchCommandConstant, originRemoteNameConstant},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// GetStatus derives the reconciliation-relevant state of the working copy.
//
// The ahead and behind counts are computed independently against the tracking
// reference; when neither an upstream nor a matching origin branch can be
// verified, both counts report zero and TrackingReference stays empty.
func (manager *RepositoryManager) GetStatus(executionContext context.Context, repositoryPath string) (RepositoryStatus, error) {
	if !manager.IsRepository(executionContext, repositoryPath) {
		return RepositoryStatus{}, NotARepositoryError{Path: repositoryPath}
	}

	statusResult, statusError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{statusCommandConstant, porcelainFlagConstant},
		WorkingDirectory: repositoryPath,
	})
	if statusError != nil {
		return RepositoryStatus{}, statusError
	}

	branchResult, branchError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{revParseCommandConstant, abbreviatedReferenceFlagConstant, headReferenceConstant},
		WorkingDirectory: repositoryPath,
	})
	if branchError != nil {
		return RepositoryStatus{}, branchError
	}
	currentBranch := strings.TrimSpace(branchResult.StandardOutput)

	repositoryStatus := RepositoryStatus{
		WorktreeClean: len(strings.TrimSpace(statusResult.StandardOutput)) == 0,
		CurrentBranch: currentBranch,
		StatusOutput:  statusResult.StandardOutput,
	}

	trackingReference, trackingAssumed := manager.resolveTrackingReference(executionContext, repositoryPath, currentBranch)
	if len(trackingReference) == 0 {
		return repositoryStatus, nil
	}

	if !manager.referenceExists(executionContext, repositoryPath, trackingReference) {
		return repositoryStatus, nil
	}

	repositoryStatus.TrackingReference = trackingReference
	repositoryStatus.TrackingAssumed = trackingAssumed
	repositoryStatus.BehindCount = manager.countRevisions(executionContext, repositoryPath, headReferenceConstant+revisionRangeSeparatorConstant+trackingReference)
	repositoryStatus.AheadCount = manager.countRevisions(executionContext, repositoryPath, trackingReference+revisionRangeSeparatorConstant+headReferenceConstant)
	return repositoryStatus, nil
}

func (manager *RepositoryManager) resolveTrackingReference(executionContext context.Context, repositoryPath string, currentBranch string) (string, bool) {
	if len(currentBranch) == 0 || strings.EqualFold(currentBranch, headReferenceConstant) {
		return "", false
	}

	upstreamResult, upstreamError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{revParseCommandConstant, abbreviatedReferenceFlagConstant, currentBranch + upstreamReferenceSuffixConstant},
		WorkingDirectory: repositoryPath,
	})
	if upstreamError == nil {
		upstreamReference := strings.TrimSpace(upstreamResult.StandardOutput)
		if len(upstreamReference) > 0 {
			return upstreamReference, false
		}
	}

	return originRemoteNameConstant + remoteReferenceSeparatorConstant + currentBranch, true
}

func (manager *RepositoryManager) referenceExists(executionContext context.Context, repositoryPath string, reference string) bool {
	_, verifyError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{revParseCommandConstant, verifyFlagConstant, quietFlagConstant, reference},
		WorkingDirectory: repositoryPath,
	})
	return verifyError == nil
}

func (manager *RepositoryManager) countRevisions(executionContext context.Context, repositoryPath string, revisionRange string) int {
	countResult, countError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{revListCommandConstant, countFlagConstant, revisionRange},
		WorkingDirectory: repositoryPath,
	})
	if countError != nil {
		return 0
	}
	revisionCount, parseError := strconv.Atoi(strings.TrimSpace(countResult.StandardOutput))
	if parseError != nil {
		return 0
	}
	return revisionCount
}

// PullRebase rebases the current branch onto its origin counterpart.
// Conflicting changes surface as a MergeConflictError carrying the captured output.
func (manager *RepositoryManager) PullRebase(executionContext context.Context, repositoryPath string) error {
	if !manager.IsRepository(executionContext, repositoryPath) {
		return NotARepositoryError{Path: repositoryPath}
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{pullCommandConstant, rebaseFlagConstant, originRemoteNameConstant, headReferenceConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError == nil {
		return nil
	}

	var failureError execshell.CommandFailedError
	if errors.As(executionError, &failureError) {
		combinedOutput := failureError.Result.StandardError + failureError.Result.StandardOutput
		if strings.Contains(strings.ToLower(combinedOutput), conflictMarkerLiteralConstant) {
			return MergeConflictError{Path: repositoryPath, Details: strings.TrimSpace(failureError.Result.StandardError)}
		}
	}
	return executionError
}

// CommitIfChanges stages and commits all pending changes, reporting whether a
// commit was created. A clean working tree is not an error.
func (manager *RepositoryManager) CommitIfChanges(executionContext context.Context, repositoryPath string, commitMessage string) (bool, error) {
	repositoryStatus, statusError := manager.GetStatus(executionContext, repositoryPath)
	if statusError != nil {
		return false, statusError
	}
	if repositoryStatus.WorktreeClean {
		return false, nil
	}

	if _, stageError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{addCommandConstant, allPathsFlagConstant},
		WorkingDirectory: repositoryPath,
	}); stageError != nil {
		return false, stageError
	}

	if _, commitError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{commitCommandConstant, commitMessageFlagConstant, commitMessage},
		WorkingDirectory: repositoryPath,
	}); commitError != nil {
		return false, commitError
	}
	return true, nil
}

// Push publishes the current branch to origin.
func (manager *RepositoryManager) Push(executionContext context.Context, repositoryPath string) error {
	if !manager.IsRepository(executionContext, repositoryPath) {
		return NotARepositoryError{Path: repositoryPath}
	}
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{pushCommandConstant, originRemoteNameConstant, headReferenceConstant},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// GetCurrentBranch reports the abbreviated HEAD reference, best effort.
func (manager *RepositoryManager) GetCurrentBranch(executionContext context.Context, repositoryPath string) (string, bool) {
	branchResult, branchError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{revParseCommandConstant, abbreviatedReferenceFlagConstant, headReferenceConstant},
		WorkingDirectory: repositoryPath,
	})
	if branchError != nil {
		return "", false
	}
	currentBranch := strings.TrimSpace(branchResult.StandardOutput)
	if len(currentBranch) == 0 {
		return "", false
	}
	return currentBranch, true
}

// GetRemoteURL reports the origin remote URL, best effort.
func (manager *RepositoryManager) GetRemoteURL(executionContext context.Context, repositoryPath string) (string, bool) {
	remoteResult, remoteError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{remoteCommandConstant, remoteGetURLSubcommandConstant, originRemoteNameConstant},
		WorkingDirectory: repositoryPath,
	})
	if remoteError != nil {
		return "", false
	}
	remoteURL := strings.TrimSpace(remoteResult.StandardOutput)
	if len(remoteURL) == 0 {
		return "", false
	}
	return remoteURL, true
}

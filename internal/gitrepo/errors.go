package gitrepo

import "fmt"

const (
	notARepositoryMessageTemplateConstant    = "%s is not a git repository"
	alreadyExistsMessageTemplateConstant     = "path already exists: %s"
	mergeConflictMessageTemplateConstant     = "merge conflict detected in %s; resolve manually"
	cloneVerificationMessageTemplateConstant = "clone completed but repository not found at %s"
)

// NotARepositoryError indicates the supplied path does not hold a git repository.
type NotARepositoryError struct {
	Path string
}

// Error describes the missing repository.
func (repositoryError NotARepositoryError) Error() string {
	return fmt.Sprintf(notARepositoryMessageTemplateConstant, repositoryError.Path)
}

// AlreadyExistsError indicates a clone destination is already occupied.
type AlreadyExistsError struct {
	Path string
}

// Error describes the occupied destination.
func (existsError AlreadyExistsError) Error() string {
	return fmt.Sprintf(alreadyExistsMessageTemplateConstant, existsError.Path)
}

// MergeConflictError indicates a rebase stopped on conflicting changes.
type MergeConflictError struct {
	Path    string
	Details string
}

// Error describes the conflict.
func (conflictError MergeConflictError) Error() string {
	return fmt.Sprintf(mergeConflictMessageTemplateConstant, conflictError.Path)
}

// CloneVerificationError indicates a clone reported success without producing a repository.
type CloneVerificationError struct {
	Path string
}

// Error describes the failed verification.
func (verificationError CloneVerificationError) Error() string {
	return fmt.Sprintf(cloneVerificationMessageTemplateConstant, verificationError.Path)
}

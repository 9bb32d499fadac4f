package registry

import (
	"fmt"
	"time"
)

const (
	repositoryNotFoundMessageTemplateConstant = "repository %s is not registered"
)

// SyncMode selects how a registered repository participates in sync passes.
type SyncMode string

// Supported sync modes.
const (
	// SyncModeAuto includes the repository in every scheduled sync pass.
	SyncModeAuto SyncMode = SyncMode("auto")
	// SyncModeManual restricts the repository to explicitly requested syncs.
	SyncModeManual SyncMode = SyncMode("manual")
)

// Repository describes a locally registered working copy.
type Repository struct {
	Name      string     `yaml:"name"`
	FullName  string     `yaml:"full_name"`
	LocalPath string     `yaml:"local_path"`
	RemoteURL string     `yaml:"remote_url"`
	SyncMode  SyncMode   `yaml:"sync_mode"`
	LastSync  *time.Time `yaml:"last_sync,omitempty"`
}

// RepositoryNotFoundError indicates a lookup for an unregistered repository.
type RepositoryNotFoundError struct {
	Name string
}

// Error describes the missing registration.
func (notFoundError RepositoryNotFoundError) Error() string {
	return fmt.Sprintf(repositoryNotFoundMessageTemplateConstant, notFoundError.Name)
}

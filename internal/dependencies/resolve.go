// Package dependencies constructs default collaborators for command builders
// that were not injected with explicit implementations.
package dependencies

import (
	"go.uber.org/zap"

	"github.com/itcpr/cloudsync/internal/execshell"
	"github.com/itcpr/cloudsync/internal/gitrepo"
	"github.com/itcpr/cloudsync/internal/ui"
)

// ResolveGitExecutor returns the provided executor or constructs a
// shell-backed default after confirming the git executable is installed.
// When humanReadableLogging is enabled the executor additionally reports
// command lifecycle events through a console event logger.
func ResolveGitExecutor(existing gitrepo.GitExecutor, logger *zap.Logger, humanReadableLogging bool) (gitrepo.GitExecutor, error) {
	if existing != nil {
		return existing, nil
	}

	if _, lookupError := execshell.LookupExecutable(execshell.CommandGit); lookupError != nil {
		return nil, lookupError
	}

	commandRunner := execshell.NewOSCommandRunner()
	shellExecutor, creationError := execshell.NewShellExecutor(logger, commandRunner)
	if creationError != nil {
		return nil, creationError
	}
	if humanReadableLogging {
		shellExecutor.RegisterObserver(ui.NewConsoleCommandEventLogger(logger))
	}
	return shellExecutor, nil
}

// ResolveFileSystem returns the provided filesystem or an OS-backed default.
func ResolveFileSystem(existing gitrepo.FileSystem) gitrepo.FileSystem {
	if existing != nil {
		return existing
	}
	return gitrepo.NewOSFileSystem()
}

// ResolveRepositoryManager constructs a repository manager from the executor
// and filesystem defaults.
func ResolveRepositoryManager(executor gitrepo.GitExecutor, fileSystem gitrepo.FileSystem) (*gitrepo.RepositoryManager, error) {
	return gitrepo.NewRepositoryManager(executor, ResolveFileSystem(fileSystem))
}

package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	storePathRequiredMessageConstant      = "registry path must be provided"
	storeLoadErrorTemplateConstant        = "failed to load repository registry: %w"
	storeParseErrorTemplateConstant       = "failed to parse repository registry: %w"
	storeWriteErrorTemplateConstant       = "failed to write repository registry: %w"
	storeTemporaryFilePatternConstant     = ".registry-*.yaml"
	storeDirectoryPermissionsConstant     = 0o755
	storeFilePermissionsConstant          = 0o644
	repositoryNameRequiredMessageConstant = "repository name must be provided"
)

// ErrStorePathRequired indicates the store was constructed without a path.
var ErrStorePathRequired = errors.New(storePathRequiredMessageConstant)

type registryDocument struct {
	Repositories []Repository `yaml:"repositories"`
}

// Store persists registered repositories in a YAML document.
//
// Writes replace the document atomically through a temporary file so a crash
// mid-write never leaves a truncated registry behind.
type Store struct {
	filePath string
	mutex    sync.Mutex
}

// NewStore constructs a Store persisting to the supplied file path.
func NewStore(filePath string) (*Store, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return nil, ErrStorePathRequired
	}
	return &Store{filePath: trimmedPath}, nil
}

// ListRepositories returns every registered repository. A missing registry
// file reads as an empty registry.
func (store *Store) ListRepositories() ([]Repository, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	document, loadError := store.load()
	if loadError != nil {
		return nil, loadError
	}
	return document.Repositories, nil
}

// GetRepository looks up a repository by name.
func (store *Store) GetRepository(repositoryName string) (Repository, bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	document, loadError := store.load()
	if loadError != nil {
		return Repository{}, false, loadError
	}

	for _, repository := range document.Repositories {
		if repository.Name == repositoryName {
			return repository, true, nil
		}
	}
	return Repository{}, false, nil
}

// AddRepository registers a repository, replacing any existing registration
// with the same name.
func (store *Store) AddRepository(repository Repository) error {
	if len(strings.TrimSpace(repository.Name)) == 0 {
		return errors.New(repositoryNameRequiredMessageConstant)
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	document, loadError := store.load()
	if loadError != nil {
		return loadError
	}

	replaced := false
	for repositoryIndex := range document.Repositories {
		if document.Repositories[repositoryIndex].Name == repository.Name {
			document.Repositories[repositoryIndex] = repository
			replaced = true
			break
		}
	}
	if !replaced {
		document.Repositories = append(document.Repositories, repository)
	}

	return store.save(document)
}

// UpdateLastSync records the completion time of the latest sync for the named
// repository.
func (store *Store) UpdateLastSync(repositoryName string, syncTime time.Time) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	document, loadError := store.load()
	if loadError != nil {
		return loadError
	}

	for repositoryIndex := range document.Repositories {
		if document.Repositories[repositoryIndex].Name == repositoryName {
			recordedTime := syncTime
			document.Repositories[repositoryIndex].LastSync = &recordedTime
			return store.save(document)
		}
	}
	return RepositoryNotFoundError{Name: repositoryName}
}

func (store *Store) load() (registryDocument, error) {
	contentBytes, readError := os.ReadFile(store.filePath)
	if readError != nil {
		if errors.Is(readError, os.ErrNotExist) {
			return registryDocument{}, nil
		}
		return registryDocument{}, fmt.Errorf(storeLoadErrorTemplateConstant, readError)
	}

	var document registryDocument
	if unmarshalError := yaml.Unmarshal(contentBytes, &document); unmarshalError != nil {
		return registryDocument{}, fmt.Errorf(storeParseErrorTemplateConstant, unmarshalError)
	}
	return document, nil
}

func (store *Store) save(document registryDocument) error {
	encodedDocument, marshalError := yaml.Marshal(document)
	if marshalError != nil {
		return fmt.Errorf(storeWriteErrorTemplateConstant, marshalError)
	}

	registryDirectory := filepath.Dir(store.filePath)
	if directoryError := os.MkdirAll(registryDirectory, storeDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(storeWriteErrorTemplateConstant, directoryError)
	}

	temporaryFile, temporaryError := os.CreateTemp(registryDirectory, storeTemporaryFilePatternConstant)
	if temporaryError != nil {
		return fmt.Errorf(storeWriteErrorTemplateConstant, temporaryError)
	}
	temporaryPath := temporaryFile.Name()

	if _, writeError := temporaryFile.Write(encodedDocument); writeError != nil {
		temporaryFile.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf(storeWriteErrorTemplateConstant, writeError)
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf(storeWriteErrorTemplateConstant, closeError)
	}
	if permissionError := os.Chmod(temporaryPath, storeFilePermissionsConstant); permissionError != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf(storeWriteErrorTemplateConstant, permissionError)
	}
	if renameError := os.Rename(temporaryPath, store.filePath); renameError != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf(storeWriteErrorTemplateConstant, renameError)
	}
	return nil
}

// Package gitrepo inspects and mutates git working copies through the git
// executable.
//
// RepositoryManager wraps an injected shell executor with typed operations
// for cloning, fetching, status derivation, rebasing, committing, and
// pushing, while remote_url.go handles structured remote URL parsing and
// access token embedding.
package gitrepo

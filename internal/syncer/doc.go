// Package syncer reconciles registered repositories with their remotes.
//
// The per-repository state machine commits local changes, rebases onto the
// remote, and pushes, in that order. Multi-repository passes record failures
// as outcomes without aborting, and watch mode repeats passes on a fixed
// interval until the context is cancelled.
package syncer

// Package overview assembles read-only views of repository assignments and
// local clone state for the repos and status commands.
package overview

// Package clone resolves repository assignments, clones them with short-lived
// access tokens, and registers the results for automatic sync.
package clone

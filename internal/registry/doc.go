// Package registry persists the set of locally registered repositories in a
// YAML document with atomic replace-on-write semantics.
package registry

// Package remoteapi implements the HTTP client for the cloud service that
// assigns repositories to devices and mints short-lived clone tokens.
package remoteapi

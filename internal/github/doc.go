// Package github is a small client for the GitHub REST contents API.
//
// It authenticates with a personal access token or as a GitHub App
// installation, and maps non-2xx responses to *APIError so callers can tell
// a missing file (IsNotFound) from a stale revision (IsConflict).
package github

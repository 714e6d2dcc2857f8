// Package testutil provides shared assertion helpers for handler tests.
package testutil

import (
	"net/http"
	"testing"
)

// RequireStatus stops the test unless the response carries the wanted
// status code. Use it before asserting on a decoded body.
func RequireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status code = %d, want %d", resp.StatusCode, want)
	}
}

// AssertStatus reports a wrong status code and lets the test continue.
func AssertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Errorf("status code = %d, want %d", resp.StatusCode, want)
	}
}

package testutil

import (
	"net/http"
	"testing"
)

// TestRequireStatus verifies the passing path only. Exercising the failure
// path would call Fatalf, which stops the test goroutine even on a
// hand-constructed testing.T. Both helpers' failure behavior is covered by
// the handler tests in internal/api, where they run against live responses.
func TestRequireStatus(t *testing.T) {
	t.Parallel()

	fakeT := &testing.T{}
	RequireStatus(fakeT, &http.Response{StatusCode: http.StatusOK}, http.StatusOK)
	if fakeT.Failed() {
		t.Error("expected no failure for a matching status code")
	}
}

func TestAssertStatus(t *testing.T) {
	t.Parallel()

	fakeT := &testing.T{}
	AssertStatus(fakeT, &http.Response{StatusCode: http.StatusNotFound}, http.StatusNotFound)
	if fakeT.Failed() {
		t.Error("expected no failure for a matching status code")
	}
}

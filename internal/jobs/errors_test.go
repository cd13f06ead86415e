package jobs

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeRoundTrip(t *testing.T) {
	sentinels := []error{ErrNotFound, ErrNotReady, ErrInvalidInput, ErrProviderFailure, ErrCancelled, ErrJobActive, ErrClosed}
	for _, sentinel := range sentinels {
		wrapped := fmt.Errorf("%w: detail", sentinel)
		code := Code(wrapped)
		back := ErrorFromCode(code, wrapped.Error())
		if !errors.Is(back, sentinel) {
			t.Errorf("code %q did not round-trip to %v", code, sentinel)
		}
	}
	if Code(nil) != "" {
		t.Fatal("nil error should have no code")
	}
	if Code(errors.New("boom")) != CodeInternal {
		t.Fatal("unknown error should be internal")
	}
	if err := ErrorFromCode(CodeTimeout, "timed out"); !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("timeout should map to provider failure, got %v", err)
	}
	if err := ErrorFromCode("weird", ""); err.Error() != "request failed" {
		t.Fatalf("unexpected fallback %v", err)
	}
}

package ft2engine

import (
	"errors"
	"testing"
)

func TestKindStringNamesEveryEnumValue(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
	}{
		{KindInvalidFormat, "invalid format"},
		{KindTruncated, "truncated"},
		{KindOutOfMemory, "out of memory"},
		{KindInvalidParameter, "invalid parameter"},
		{KindQueueFull, "queue full"},
		{KindInvalidState, "invalid state"},
		{Kind(999), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.k, got, tt.want)
		}
	}
}

func TestLoadErrorMessageIncludesWrappedError(t *testing.T) {
	err := newLoadError(KindTruncated, ErrTruncated)
	want := "truncated: " + ErrTruncated.Error()
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestLoadErrorMessageWithNilWrappedErrorIsJustKind(t *testing.T) {
	le := &LoadError{Kind: KindOutOfMemory}
	if got := le.Error(); got != "out of memory" {
		t.Errorf("Error() = %q, want %q", got, "out of memory")
	}
}

func TestLoadErrorUnwrapsToUnderlyingError(t *testing.T) {
	err := newLoadError(KindInvalidFormat, ErrUnrecognizedMODFormat)
	if !errors.Is(err, ErrUnrecognizedMODFormat) {
		t.Error("errors.Is() did not find the wrapped sentinel through Unwrap()")
	}
}

func TestLoadErrorAsExposesKind(t *testing.T) {
	err := newLoadError(KindTruncated, ErrTruncated)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatal("errors.As() failed to extract *LoadError")
	}
	if le.Kind != KindTruncated {
		t.Errorf("le.Kind = %v, want %v", le.Kind, KindTruncated)
	}
}

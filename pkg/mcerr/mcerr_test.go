package mcerr

import (
	"errors"
	"testing"
)

func TestErrorIsMatchesOnCode(t *testing.T) {
	cause := errors.New("boom")
	err := New(McServerErr, "mykey", cause)

	if !errors.Is(err, New(McServerErr, "", nil)) {
		t.Error("expected errors.Is to match on code regardless of key/cause")
	}
	if errors.Is(err, New(RecvErr, "", nil)) {
		t.Error("expected errors.Is to not match a different code")
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	err := New(SendErr, "k", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestErrorStringIncludesKeyWhenPresent(t *testing.T) {
	err := New(InvalidKeyErr, "badkey", nil)
	if err.Error() == "" {
		t.Fatal("expected a non-empty error string")
	}
}

package errors

import "testing"

func TestWrap(t *testing.T) {
	err := Wrap(errWrapped, "dispatch transfer")
	if err.Error() != "dispatch transfer, err: wrapped error" {
		t.Fatalf("error mismatch: %+v", err)
	}

	if !Is(err, errWrapped) {
		t.Fatalf("wrapped error should match its cause: %+v", err)
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, "nothing"); err != nil {
		t.Fatalf("wrap nil should stay nil, got: %+v", err)
	}

	if err := Wrapf(nil, "nothing %d", 1); err != nil {
		t.Fatalf("wrapf nil should stay nil, got: %+v", err)
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(Wrapf(errWrapped, "op %s", "mint_to"), "step %d", 3)
	if err.Error() != "step 3, err: op mint_to, err: wrapped error" {
		t.Fatalf("error mismatch: %+v", err)
	}

	if !Is(err, errWrapped) {
		t.Fatalf("nested wrap should reach its cause: %+v", err)
	}
}

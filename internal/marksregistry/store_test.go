package marksregistry

import (
	"errors"
	"testing"
)

func TestMarkUpdates(t *testing.T) {
	t.Run("partial update touches only named slots", func(t *testing.T) {
		updates, err := markUpdates(map[string]float64{"tutorial2": 8})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(updates) != 1 {
			t.Fatalf("expected 1 column update, got %d", len(updates))
		}
		if updates["tutorial2"] != 8.0 {
			t.Errorf("expected tutorial2=8, got %v", updates["tutorial2"])
		}
	})

	t.Run("multiple slots in one request", func(t *testing.T) {
		updates, err := markUpdates(map[string]float64{
			"tutorial1":  10,
			"ca1":        42.5,
			"assignment": 0,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(updates) != 3 {
			t.Errorf("expected 3 column updates, got %d", len(updates))
		}
	})

	t.Run("unknown slot rejects whole request", func(t *testing.T) {
		updates, err := markUpdates(map[string]float64{
			"tutorial1": 5,
			"tutorial9": 5,
		})
		assertValidationError(t, err)
		if updates != nil {
			t.Error("expected no updates on rejection")
		}
	})

	t.Run("value above slot limit", func(t *testing.T) {
		_, err := markUpdates(map[string]float64{"tutorial3": 10.5})
		assertValidationError(t, err)
	})

	t.Run("ca slots allow up to 50", func(t *testing.T) {
		if _, err := markUpdates(map[string]float64{"ca2": 50}); err != nil {
			t.Errorf("ca2=50 should be valid, got %v", err)
		}
		_, err := markUpdates(map[string]float64{"ca2": 50.5})
		assertValidationError(t, err)
	})

	t.Run("negative value", func(t *testing.T) {
		_, err := markUpdates(map[string]float64{"assignment": -1})
		assertValidationError(t, err)
	})

	t.Run("empty marks", func(t *testing.T) {
		_, err := markUpdates(map[string]float64{})
		assertValidationError(t, err)
	})
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	var updateErr *UpdateError
	if !errors.As(err, &updateErr) {
		t.Fatalf("expected UpdateError, got %v", err)
	}
	if updateErr.Category != CategoryValidation {
		t.Errorf("expected category %q, got %q", CategoryValidation, updateErr.Category)
	}
}

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown title", ErrUnknownTitle, http.StatusNotFound},
		{"wrapped unknown title", fmt.Errorf("lookup %q: %w", "Spoderman", ErrUnknownTitle), http.StatusNotFound},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"index out of range is a defect", ErrIndexOutOfRange, http.StatusInternalServerError},
		{"dimension mismatch", ErrDimensionMismatch, http.StatusInternalServerError},
		{"non-finite score", fmt.Errorf("matrix cell (2, 0) is NaN: %w", ErrInvalidScore), http.StatusInternalServerError},
		{"unrelated", errors.New("boom"), http.StatusInternalServerError},
		{"app error wins", New(ErrInternal, http.StatusTeapot, "short and stout"), http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "limit %d", -1)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatal("expected AppError to unwrap to its sentinel")
	}
	if got, want := err.Error(), "invalid input: limit -1"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

package xraster

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&NotFoundError{Path: "a.tif"}, ErrNotFound},
		{configErrorf("bad %d", 1), ErrConfiguration},
		{&UnsupportedOperatorError{Op: "=="}, ErrUnsupportedOperator},
		{&InvalidBandError{Names: []string{"X"}}, ErrInvalidBand},
		{&ComputationError{Op: "sieve", Err: io.EOF}, ErrComputation},
		{&WriteError{Path: "out.tif", Err: io.EOF}, ErrWrite},
	}
	all := []error{ErrNotFound, ErrConfiguration, ErrUnsupportedOperator, ErrInvalidBand, ErrComputation, ErrWrite}
	for _, tt := range tests {
		wrapped := fmt.Errorf("context: %w", tt.err)
		for _, s := range all {
			if got, want := errors.Is(wrapped, s), s == tt.sentinel; got != want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, s, got, want)
			}
		}
	}
}

func TestErrorsUnwrapCause(t *testing.T) {
	err := error(&ComputationError{Op: "index NDWI", Err: &InvalidBandError{Names: []string{"NIR1"}}})
	if !errors.Is(err, ErrInvalidBand) {
		t.Error("computation error hides its cause")
	}
	if !errors.Is(&WriteError{Path: "x", Err: io.ErrShortWrite}, io.ErrShortWrite) {
		t.Error("write error hides its cause")
	}
}

func TestUnsupportedOperatorMessageListsSymbols(t *testing.T) {
	msg := (&UnsupportedOperatorError{Op: "=="}).Error()
	want := `unsupported operator "==" (supported: <, >, <=, >=)`
	if msg != want {
		t.Errorf("message = %q", msg)
	}
}

package capi

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

// TEST21: Error messages carry the type, operation, and detail
func Test21_error_messages(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{NewLibraryError("backend exploded"), "Library error: backend exploded"},
		{NewInvalidParameter("chunk", "cannot be empty"), "Invalid parameter chunk: cannot be empty"},
		{NewNodeError("start", "already started"), "Node error in start: already started"},
		{NewUploadError("session closed"), "Upload error: session closed"},
		{NewDownloadError("unknown cid"), "Download error: unknown cid"},
		{NewStorageError("delete", "not found"), "Storage error in delete: not found"},
		{NewTimeoutError("callback wait"), "Operation timed out: callback wait"},
		{NewCancelledError("upload"), "Operation cancelled: upload"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("got %q, want %q", got, tc.want)
		}
	}
}

// TEST22: Unwrap exposes the underlying cause
func Test22_error_unwrap(t *testing.T) {
	err := NewIOError("read failed", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("errors.Is did not find the wrapped cause")
	}
}

// TEST23: errors.As digs *Error out of a wrapped chain
func Test23_error_as_through_wrapping(t *testing.T) {
	wrapped := fmt.Errorf("uploading part 3: %w", NewUploadError("quota exceeded"))

	var bridgeErr *Error
	if !errors.As(wrapped, &bridgeErr) {
		t.Fatal("errors.As failed on wrapped bridge error")
	}
	if bridgeErr.Type != ErrorTypeUpload || bridgeErr.Msg != "quota exceeded" {
		t.Errorf("wrong error extracted: %+v", bridgeErr)
	}
}

// TEST24: Status codes have stable names
func Test24_status_names(t *testing.T) {
	names := map[Status]string{
		StatusOK:              "ok",
		StatusError:           "error",
		StatusMissingCallback: "missing-callback",
		StatusProgress:        "progress",
		Status(99):            "unknown",
	}
	for s, want := range names {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", int32(s), got, want)
		}
	}
}

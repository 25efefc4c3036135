package resolver

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Is(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", newError("ref", ErrNotFound, nil), ErrNotFound},
		{"timeout", newError("ref", ErrTimeout, errors.New("deadline")), ErrTimeout},
		{"unauthorized", newError("ref", ErrUnauthorized, nil), ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.want)
			}
			for _, other := range []error{ErrNotFound, ErrTimeout, ErrUnauthorized} {
				if other != tt.want && errors.Is(tt.err, other) {
					t.Errorf("errors.Is(%v, %v) = true, want false", tt.err, other)
				}
			}
		})
	}

	unknown := newError("ref", nil, errors.New("boom"))
	if errors.Is(unknown, ErrNotFound) || errors.Is(unknown, ErrTimeout) {
		t.Error("unclassified error must not match any sentinel")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := newError("ref", ErrTimeout, cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable via errors.Is")
	}
}

func TestToDirectDownload(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.dropbox.com/sh/abc/file.jpg?dl=0", "https://www.dropbox.com/sh/abc/file.jpg?dl=1"},
		{"https://www.dropbox.com/s/xyz/pic.png", "https://www.dropbox.com/s/xyz/pic.png?dl=1"},
		{"https://www.dropbox.com/scl/fi/q/img.jpg?rlkey=k&dl=0", "https://www.dropbox.com/scl/fi/q/img.jpg?dl=1&rlkey=k"},
	}

	for _, tt := range tests {
		if got := toDirectDownload(tt.in); got != tt.want {
			t.Errorf("toDirectDownload(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFileNameHint(t *testing.T) {
	tests := []struct {
		link   string
		anchor string
		want   string
	}{
		{"https://www.dropbox.com/sh/abc/photo.jpg?dl=0", "ignored", "photo.jpg"},
		{"https://www.dropbox.com/sh/abc/noext", "shown name.png", "shown name.png"},
		{"://bad", "fallback", "fallback"},
	}

	for _, tt := range tests {
		if got := fileNameHint(tt.link, tt.anchor); got != tt.want {
			t.Errorf("fileNameHint(%q, %q) = %q, want %q", tt.link, tt.anchor, got, tt.want)
		}
	}
}

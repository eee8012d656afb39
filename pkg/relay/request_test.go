package relay

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

func TestReadRequestHead(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxBytes  int
		wantLines []string
		wantErr   error
	}{
		{
			name:      "crlf head",
			input:     "GET / HTTP/1.1\r\nHost: x\r\n\r\n",
			wantLines: []string{"GET / HTTP/1.1", "Host: x"},
		},
		{
			name:      "bare lf head",
			input:     "GET / HTTP/1.1\nHost: x\n\n",
			wantLines: []string{"GET / HTTP/1.1", "Host: x"},
		},
		{
			name:      "body is not read",
			input:     "POST / HTTP/1.1\r\nContent-Length: 4\r\n\r\nBODY",
			wantLines: []string{"POST / HTTP/1.1", "Content-Length: 4"},
		},
		{
			name:      "empty head",
			input:     "\r\n",
			wantLines: nil,
		},
		{
			name:      "lines are not interpreted",
			input:     "not http at all\r\n\x00\x01garbage\r\n\r\n",
			wantLines: []string{"not http at all", "\x00\x01garbage"},
		},
		{
			name:      "exactly at limit",
			input:     "abc\r\n\r\n",
			maxBytes:  7,
			wantLines: []string{"abc"},
		},
		{
			name:    "unterminated head",
			input:   "GET / HTTP/1.1\r\nHost: x\r\n",
			wantErr: ErrIncompleteHead,
		},
		{
			name:    "partial line at end of stream",
			input:   "GET / HTTP/1.1\r\nHos",
			wantErr: ErrIncompleteHead,
		},
		{
			name:    "empty stream",
			input:   "",
			wantErr: ErrIncompleteHead,
		},
		{
			name:     "head over limit",
			input:    "0123456789ABCDEF\r\n\r\n",
			maxBytes: 10,
			wantErr:  ErrHeadTooLarge,
		},
		{
			name:     "one byte over limit",
			input:    "abc\r\n\r\n",
			maxBytes: 6,
			wantErr:  ErrHeadTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ReadRequestHead(strings.NewReader(tt.input), tt.maxBytes)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ReadRequestHead() error = %v, want %v", err, tt.wantErr)
				}
				var readErr *ReadError
				if !errors.As(err, &readErr) {
					t.Errorf("error %T is not a *ReadError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadRequestHead() unexpected error: %v", err)
			}

			if len(req.HeadLines) != len(tt.wantLines) {
				t.Fatalf("HeadLines = %q, want %q", req.HeadLines, tt.wantLines)
			}
			for i := range tt.wantLines {
				if req.HeadLines[i] != tt.wantLines[i] {
					t.Errorf("HeadLines[%d] = %q, want %q", i, req.HeadLines[i], tt.wantLines[i])
				}
			}
		})
	}
}

func TestReadRequestHead_IOError(t *testing.T) {
	boom := errors.New("connection reset")

	_, err := ReadRequestHead(iotest.ErrReader(boom), 0)

	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("error = %v, want *ReadError", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error does not wrap the I/O fault: %v", err)
	}
}

func TestReadRequestHead_CountsLinesBeforeFailure(t *testing.T) {
	_, err := ReadRequestHead(strings.NewReader("a\r\nb\r\nc"), 0)

	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("error = %v, want *ReadError", err)
	}
	if readErr.Lines != 2 {
		t.Errorf("Lines = %d, want 2", readErr.Lines)
	}
}

package relay

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// InboundRequest is the head of a client request: every line up to, but not
// including, the first empty line. The lines are never interpreted.
type InboundRequest struct {
	HeadLines []string
}

// ReadRequestHead reads lines from r until the first empty line. Lines are
// split on '\n' with a trailing '\r' removed. No body is read.
//
// maxBytes limits the head size including line terminators; zero means no
// limit. All failures are returned as *ReadError, wrapping ErrIncompleteHead
// when the stream ends first and ErrHeadTooLarge when the limit is exceeded.
func ReadRequestHead(r io.Reader, maxBytes int) (*InboundRequest, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, int64(maxBytes)+1)
	}
	br := bufio.NewReader(r)

	req := &InboundRequest{}
	total := 0
	for {
		line, err := br.ReadString('\n')
		total += len(line)
		if maxBytes > 0 && total > maxBytes {
			return nil, &ReadError{Lines: len(req.HeadLines), Cause: ErrHeadTooLarge}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrIncompleteHead
			}
			return nil, &ReadError{Lines: len(req.HeadLines), Cause: err}
		}

		line = strings.TrimSuffix(line[:len(line)-1], "\r")
		if line == "" {
			return req, nil
		}
		req.HeadLines = append(req.HeadLines, line)
	}
}

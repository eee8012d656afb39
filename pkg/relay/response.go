package relay

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
)

// FailureBody is the fixed body sent for every failed relay.
const FailureBody = "Upstream Request Failed"

// OutboundResponse is the minimal HTTP/1.1 response written to a client:
// a status line, one Content-Length header and the body.
type OutboundResponse struct {
	StatusCode int
	Reason     string
	Body       []byte
}

// Bytes returns the wire encoding of the response. Content-Length always
// equals len(Body).
func (r OutboundResponse) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(64 + len(r.Body))

	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(r.StatusCode))
	buf.WriteByte(' ')
	buf.WriteString(r.Reason)
	buf.WriteString("\r\nContent-Length: ")
	buf.WriteString(strconv.Itoa(len(r.Body)))
	buf.WriteString("\r\n\r\n")
	buf.Write(r.Body)

	return buf.Bytes()
}

// SuccessResponse returns a 200 response carrying body.
func SuccessResponse(body []byte) OutboundResponse {
	return OutboundResponse{
		StatusCode: http.StatusOK,
		Reason:     http.StatusText(http.StatusOK),
		Body:       body,
	}
}

// FailureResponse returns the fixed 500 response.
func FailureResponse() OutboundResponse {
	return OutboundResponse{
		StatusCode: http.StatusInternalServerError,
		Reason:     http.StatusText(http.StatusInternalServerError),
		Body:       []byte(FailureBody),
	}
}

// ResponseFor maps an upstream outcome to the response for the client.
// Only a successful exchange with a 2xx status is forwarded; everything
// else becomes FailureResponse.
func ResponseFor(o Outcome) OutboundResponse {
	if o.Kind == OutcomeSuccess && o.StatusOK {
		return SuccessResponse(o.Body)
	}
	return FailureResponse()
}

// WriteResponse writes resp to w in a single write. It returns the number
// of bytes written; a fault or short write is returned as *WriteError.
func WriteResponse(w io.Writer, resp OutboundResponse) (int, error) {
	b := resp.Bytes()
	n, err := w.Write(b)
	if err == nil && n != len(b) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return n, &WriteError{Written: n, Expected: len(b), Cause: err}
	}
	return n, nil
}

// Package relay implements the TLS relay pipeline.
//
// Every accepted connection runs through the same fixed sequence:
//
//	Accepted → Handshaking → ReadingRequest → Dispatching → WritingResponse → Closed
//
// The handshake uses a static server credential. The request head is read up
// to the first empty line and never interpreted. One GET is made to the
// configured upstream regardless of what the client asked for, and a minimal
// HTTP/1.1 response is written back:
//
//	HTTP/1.1 200 OK\r\nContent-Length: <n>\r\n\r\n<upstream body>
//
// when the upstream answered with a 2xx status, and the fixed
//
//	HTTP/1.1 500 Internal Server Error\r\nContent-Length: 23\r\n\r\nUpstream Request Failed
//
// for anything else. A failed handshake closes the connection without
// writing anything.
//
// Server accepts connections and runs each Handler invocation in its own
// goroutine, with optional rate and concurrency limits on accepting.
package relay

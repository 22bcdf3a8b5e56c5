package httpx

// Response represents the in-flight or completed result of a Request.
// Its Status/StatusCode/Header/Body fields only carry meaningful values
// once Completion has resolved; callers that only care about the final
// status should wait on Completion rather than poll the fields.
type Response struct {
	message

	Status     string
	StatusCode int
	Request    *Request

	hooks      EventHooks
	completion *Future[uint16]
}

func newResponse(req *Request) *Response {
	return &Response{
		message:    message{Header: Header{}, ContentLength: -1},
		Request:    req,
		completion: NewFuture[uint16](),
	}
}

// Completion resolves once the status line, headers, and the entire
// body have been read, or fails if the request never got that far —
// including a failure discovered mid-body, such as the peer closing
// before a Content-Length body is fully delivered. This is the Go
// equivalent of response::completion() in the original.
func (r *Response) Completion() *Future[uint16] {
	return r.completion
}

// Hooks exposes the header/status/version observation callbacks that a
// Connection fires while it parses into this Response. Client.Do parses
// each attempt into a private Response and dispatches it before
// returning, so callbacks registered on the Response it returns are
// never called.
func (r *Response) Hooks() *EventHooks {
	return &r.hooks
}

// HeaderValue is a convenience wrapper around Header.Get.
func (r *Response) HeaderValue(key string) string {
	return r.Header.Get(key)
}

// commitFrom copies the terminal state of an attempt's private Response
// into r, the Response the caller was handed by Client.Do, and settles
// r's completion to match. Used once the client's retry hook chain
// decides an attempt is final.
func (r *Response) commitFrom(attempt *Response, code uint16, err error) {
	r.message = attempt.message
	r.Status = attempt.Status
	r.StatusCode = attempt.StatusCode
	r.Request = attempt.Request
	r.hooks = attempt.hooks
	if err != nil {
		r.completion.Fail(err)
		return
	}
	r.completion.Done(code)
}

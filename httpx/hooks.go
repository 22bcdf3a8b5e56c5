package httpx

// Hook inspects the result of one attempt and decides whether the
// Client should treat it as final. Every hook must return ok=true for
// the chain to forward the result; the first hook to return ok=false
// triggers a retry, optionally substituting replacement for the next
// attempt's request. This is L9's chained hook combinator: all-true to
// forward, first-false to retry.
type Hook func(req *Request, res *Response, attempt int) (replacement *Request, ok bool)

// runHooks runs every configured hook against one attempt's result. It
// returns the request to use if a retry is warranted, and whether a
// retry is warranted at all.
func runHooks(hooks []Hook, cur *Request, res *Response, attempt int) (next *Request, retry bool) {
	next = cur
	for _, h := range hooks {
		replacement, ok := h(cur, res, attempt)
		if !ok {
			if replacement != nil {
				next = replacement
			}
			return next, true
		}
	}
	return next, false
}

// RetryOnStatus builds a Hook that retries whenever the response's
// status code is in codes, up to no limit of its own (MaxAttempts on
// the Client bounds it).
func RetryOnStatus(codes ...int) Hook {
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return func(req *Request, res *Response, attempt int) (*Request, bool) {
		if _, retry := set[res.StatusCode]; retry {
			return req, false
		}
		return req, true
	}
}

// RetryOnIOError builds a Hook that retries any attempt whose
// completion failed with an IO or Connect-kind error, the transient
// failures most likely to succeed on a fresh connection.
func RetryOnIOError() Hook {
	return func(req *Request, res *Response, attempt int) (*Request, bool) {
		_, err := res.Completion().Wait(req.Context())
		if err == nil {
			return req, true
		}
		if IsKind(err, KindIO) || IsKind(err, KindConnect) {
			return req, false
		}
		return req, true
	}
}

package model

import "time"

// NetworkExchange is one HTTP(S) transaction observed while a page loaded.
//
// ResponseHeaders is nil when the browser never received a response, for
// example when the request was blocked or the page was torn down first.
type NetworkExchange struct {
	// RequestID is the identifier the browser assigned to the request.
	RequestID string `json:"request_id,omitempty"`

	// RequestURL is the full URL that was requested.
	RequestURL string `json:"request_url"`

	// Method is the HTTP method, e.g. GET.
	Method string `json:"method,omitempty"`

	// Timestamp is when the request was issued.
	Timestamp time.Time `json:"timestamp"`

	// RequestHeaders are the headers sent with the request.
	RequestHeaders Headers `json:"request_headers"`

	// ResponseHeaders are the headers of the response, if one arrived.
	ResponseHeaders *Headers `json:"response_headers,omitempty"`

	// StatusCode is the HTTP status of the response, 0 when there is none.
	StatusCode int `json:"status_code,omitempty"`
}

// HasResponse reports whether a response was captured for the exchange.
func (e NetworkExchange) HasResponse() bool {
	return e.ResponseHeaders != nil
}

// ResponseHeader returns a response header value, or "" when the exchange
// has no response or the header is absent.
func (e NetworkExchange) ResponseHeader(name string) (string, bool) {
	if e.ResponseHeaders == nil {
		return "", false
	}
	return e.ResponseHeaders.Get(name)
}

package stream

import "net/http"

type options struct {
	client *http.Client
}

// Option configures a dialer built by New.
type Option func(*options)

// WithHTTPClient sets the client used to open the stream. It must not have a
// Timeout, which would cut off the long-lived response.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

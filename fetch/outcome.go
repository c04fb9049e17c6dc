package fetch

import (
	"net/http"
	"net/url"
	"time"

	"github.com/vietddude/resilio/fetch/classify"
)

// Outcome is the immutable result of one fetch attempt sequence. Exactly one
// Outcome is produced per Fetch call, whether it retried or not.
type Outcome struct {
	Resource     string
	Success      bool
	StatusCode   int
	Body         []byte
	Headers      http.Header
	ErrorKind    classify.Kind
	ErrorMessage string
	Elapsed      time.Duration
	RetryCount   int
	Timestamp    time.Time
}

// ResourceKey derives the breaker/blacklist key for a resource. Breakers are
// tracked per host so that retries against different paths of one failing
// endpoint count against the same breaker. Unparseable resources key on the
// raw string.
func ResourceKey(resource string) string {
	u, err := url.Parse(resource)
	if err != nil || u.Host == "" {
		return resource
	}
	return u.Host
}

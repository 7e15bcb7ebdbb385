package provider

import (
	"fmt"

	"github.com/Sternrassler/jokepool/pkg/joke"
)

// Kind classifies the result of a single FetchOne call.
type Kind string

const (
	// KindSuccess means a valid candidate was fetched.
	KindSuccess Kind = "success"

	// KindRateLimited means every attempt was answered with 429.
	KindRateLimited Kind = "rate_limited"

	// KindClientRejected means a non-429 4xx answer. Never retried.
	KindClientRejected Kind = "client_rejected"

	// KindInvalidBody means the body did not parse or lacked setup/punchline. Never retried.
	KindInvalidBody Kind = "invalid_body"

	// KindTransportFailed means a network error or a non-4xx error status. Never retried.
	KindTransportFailed Kind = "transport_failed"

	// KindCancelled means the context ended before a result was obtained.
	KindCancelled Kind = "cancelled"
)

// Kinds lists every outcome kind, in a stable order.
var Kinds = []Kind{
	KindSuccess,
	KindRateLimited,
	KindClientRejected,
	KindInvalidBody,
	KindTransportFailed,
	KindCancelled,
}

// Outcome is the closed result of FetchOne. Candidate is only meaningful for KindSuccess.
type Outcome struct {
	Kind       Kind
	Candidate  joke.Candidate
	StatusCode int
	Attempts   int
	Cause      error
}

// OK reports whether the outcome carries a candidate.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

// Err returns nil for a success and an error matching the kind's sentinel otherwise.
func (o Outcome) Err() error {
	if o.Kind == KindSuccess {
		return nil
	}
	sentinel := sentinelFor(o.Kind)
	if sentinel == nil {
		return fmt.Errorf("unknown outcome kind %q", o.Kind)
	}
	if o.Cause == nil {
		return sentinel
	}
	// StatusError already unwraps to the sentinel.
	if _, ok := o.Cause.(*StatusError); ok {
		return o.Cause
	}
	return fmt.Errorf("%w: %v", sentinel, o.Cause)
}

func success(c joke.Candidate, status int) Outcome {
	return Outcome{Kind: KindSuccess, Candidate: c, StatusCode: status}
}

func failure(kind Kind, status int, cause error) Outcome {
	return Outcome{Kind: kind, StatusCode: status, Cause: cause}
}

package embedding

import "context"

// Provider is the remote capability that turns a batch of texts into vectors.
// Implementations return exactly one Response per input text, in input order,
// or an error (typically a *domain.ProviderError) when the call itself failed.
type Provider interface {
	Name() string
	EmbedBatch(ctx context.Context, texts []string) ([]Response, error)
}

// Response is a provider's answer for a single text: either a vector or the
// reason no vector was produced.
type Response struct {
	vector []float64
	reason string
}

// Vector builds a successful response.
func Vector(v []float64) Response { return Response{vector: v} }

// Failure builds a response for a text the provider could not embed.
func Failure(reason string) Response {
	if reason == "" {
		reason = "no embedding returned"
	}
	return Response{reason: reason}
}

// OK reports whether the response carries a non-empty vector.
func (r Response) OK() bool { return r.reason == "" && len(r.vector) > 0 }

// Vector returns the embedding; it is nil for failures.
func (r Response) Vector() []float64 { return r.vector }

// Reason explains why the response carries no vector.
func (r Response) Reason() string {
	if r.reason == "" && len(r.vector) == 0 {
		return "empty embedding"
	}
	return r.reason
}

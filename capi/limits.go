package capi

// DefaultMaxChunk is the default cap on a single upload chunk (32 MiB).
const DefaultMaxChunk int = 33_554_432

// DefaultMaxPayload is the default cap on a dataset buffered whole in
// memory (1 GiB). Streaming operations are not subject to it.
const DefaultMaxPayload int = 1_073_741_824

// Limits bounds the data volumes the bridge accepts locally, before any
// engine call is issued. The engine may enforce tighter limits of its
// own; these only keep obviously oversized requests off the boundary.
type Limits struct {
	MaxChunk   int
	MaxPayload int
}

// DefaultLimits returns the default bridge limits.
func DefaultLimits() Limits {
	return Limits{
		MaxChunk:   DefaultMaxChunk,
		MaxPayload: DefaultMaxPayload,
	}
}

package capi

import "github.com/rs/zerolog"

// logger receives bridge diagnostics: dropped late callbacks, contained
// panics, unexpected status codes. Disabled by default.
var logger = zerolog.Nop()

// SetLogger routes bridge diagnostics to l. Call it before any engine
// traffic; the logger is not synchronized against concurrent use.
func SetLogger(l zerolog.Logger) {
	logger = l
}

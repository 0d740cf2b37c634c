package strand

import "github.com/rs/zerolog"

// logger receives node-level diagnostics: lifecycle transitions,
// session opens and closes, rejected issue calls. Disabled by default.
var logger = zerolog.Nop()

// SetLogger routes node diagnostics to l. Call it before creating
// nodes; the logger is not synchronized against concurrent use.
func SetLogger(l zerolog.Logger) {
	logger = l
}

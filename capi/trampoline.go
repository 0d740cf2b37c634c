package capi

// Trampoline is the single callback handed to every engine call. The
// engine invokes it from its own threads with the token the issuer
// passed; identity is re-resolved through the completion registry on
// every delivery.
//
// The contract mirrors a C callback boundary: Trampoline never panics,
// a zero token is a no-op, an unknown token (the future was closed, or
// the wait timed out) is a silent drop, and a nil payload is treated as
// an empty message.
func Trampoline(status Status, payload []byte, token uint64) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Uint64("token", token).
				Msg("callback dispatch panicked")
		}
	}()

	if token == 0 {
		return
	}
	c, ok := lookupCompletion(token)
	if !ok {
		logger.Debug().Uint64("token", token).Stringer("status", status).
			Msg("dropping callback for unregistered token")
		return
	}

	switch status {
	case StatusProgress:
		c.progress(payload)
	case StatusOK:
		c.terminal(payload, nil)
	case StatusError:
		c.terminal(nil, NewLibraryError(string(payload)))
	default:
		// Issue-side codes are never valid as deliveries.
		logger.Debug().Uint64("token", token).Stringer("status", status).
			Msg("dropping callback with unexpected status")
	}
}

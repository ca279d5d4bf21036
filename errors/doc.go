// Package errors provides standardized error handling patterns for ShopStream components.
//
// # Overview
//
// The errors package implements a three-class error classification system for
// a distributed gateway: Transient (temporary, retryable), Invalid (bad input,
// non-retryable), and Fatal (unrecoverable, stop the process).
//
// Classification drives behavior at two places in ShopStream. The HTTP router
// maps classes to status codes (transient broker and timeout failures become
// 503/504, invalid input becomes 4xx). Startup code treats fatal errors as a
// reason to exit before serving, most importantly when the initial broker
// connection cannot be established within the configured retry budget.
//
// The classification system integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Use standard error variables for known conditions:
//
//	if !connected {
//	    return errors.ErrNoConnection
//	}
//
// Wrap errors with component context and a classification:
//
//	if err := nc.Publish(ctx, subject, data); err != nil {
//	    return errors.WrapTransient(err, "RPCClient", "Call", "publish request")
//	}
//
// Check classification when deciding how to react:
//
//	if errors.IsTransient(err) {
//	    // retry or surface as a temporary failure
//	}
//	if errors.IsFatal(err) {
//	    // stop the process
//	}
//
// # Wrapping Convention
//
// All wrap helpers produce messages of the form
//
//	component.method: action failed: <cause>
//
// which keeps log lines and HTTP error bodies greppable by component and
// operation without a stack trace.
//
// # Classification Rules
//
// An explicit *ClassifiedError always wins. Otherwise sentinel errors are
// matched with errors.Is, and as a last resort the message is scanned for
// well-known substrings ("timeout", "connection", "fatal", ...). Unknown
// errors default to transient so callers err on the side of retrying.
package errors

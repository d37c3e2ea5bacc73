// Package httputil provides shared HTTP response helpers for the API handlers.
//
// Handlers write every response through these helpers so error envelopes stay
// consistent: {"error": "...", "code": "..."}. Callers of the send endpoint
// rely on the code to tell "throttled, try later" apart from "bad request".
package httputil

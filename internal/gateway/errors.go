package gateway

import (
	"html/template"
	"net/http"
)

// ErrorKind tags every client-visible failure the gateway can produce.
// Each kind maps to exactly one HTTP status and one safe, generic message;
// the optional Detail is a short, non-sensitive hint (never key material,
// signature bytes, or raw headers).
type ErrorKind string

const (
	KindInvalidEnvelope      ErrorKind = "INVALID_ENVELOPE"
	KindInvalidKeyID         ErrorKind = "INVALID_KEY_ID"
	KindKeyNotFound          ErrorKind = "KEY_NOT_FOUND"
	KindKeyInactive          ErrorKind = "KEY_INACTIVE"
	KindTimestampFuture      ErrorKind = "TIMESTAMP_FUTURE"
	KindSignatureExpired     ErrorKind = "SIGNATURE_EXPIRED"
	KindMissingNonce         ErrorKind = "MISSING_NONCE"
	KindReplay               ErrorKind = "REPLAY"
	KindSignatureBad         ErrorKind = "SIGNATURE_BAD"
	KindUnsupportedAlgorithm ErrorKind = "UNSUPPORTED_ALGORITHM"
	KindRegistryUnavailable  ErrorKind = "REGISTRY_UNAVAILABLE"
	KindSignatureRequired    ErrorKind = "SIGNATURE_REQUIRED"
)

// statusFor is the single source of truth for the Kind -> HTTP status
// mapping.
func statusFor(kind ErrorKind) int {
	switch kind {
	case KindUnsupportedAlgorithm:
		return http.StatusBadRequest
	case KindRegistryUnavailable:
		return http.StatusInternalServerError
	default:
		return http.StatusForbidden
	}
}

// messageFor is the generic, client-visible message for each kind. These
// deliberately do not confirm whether a key exists, to limit enumeration.
func messageFor(kind ErrorKind) string {
	switch kind {
	case KindInvalidEnvelope:
		return "The signature headers on this request are missing or malformed."
	case KindInvalidKeyID:
		return "The signing key identifier is not well-formed."
	case KindKeyNotFound:
		return "The request could not be authenticated."
	case KindKeyInactive:
		return "The request could not be authenticated."
	case KindTimestampFuture:
		return "The signature's creation time is not yet valid."
	case KindSignatureExpired:
		return "The signature has expired."
	case KindMissingNonce:
		return "The signature is missing a required nonce."
	case KindReplay:
		return "This request has already been processed."
	case KindSignatureBad:
		return "The request could not be authenticated."
	case KindUnsupportedAlgorithm:
		return "The signature algorithm is not supported."
	case KindRegistryUnavailable:
		return "The gateway could not reach the key registry."
	case KindSignatureRequired:
		return "This resource requires a signed request."
	default:
		return "The request could not be processed."
	}
}

// GatewayError is a single, renderable error result carrying an optional
// non-sensitive detail hint.
type GatewayError struct {
	Kind   ErrorKind
	Detail string
}

func (e *GatewayError) Error() string {
	if e.Detail != "" {
		return string(e.Kind) + ": " + e.Detail
	}
	return string(e.Kind)
}

// Status returns the HTTP status this error renders as.
func (e *GatewayError) Status() int {
	return statusFor(e.Kind)
}

var errorPageTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .Detail}}<p>Details: {{.Detail}}</p>{{end}}
</body>
</html>
`))

// renderError writes err as a small, context-free HTML page: title,
// message, and optional detail line, with every interpolated field
// escaped by html/template. No stack traces, no header echoes. The title
// is the generic HTTP status text, never the error kind: a kind like
// KEY_NOT_FOUND vs KEY_INACTIVE in the page would let a client enumerate
// registered keys. The kind reaches logs and metrics only.
func renderError(w http.ResponseWriter, err *GatewayError) {
	status := err.Status()

	data := struct {
		Title   string
		Message string
		Detail  string
	}{
		Title:   http.StatusText(status),
		Message: messageFor(err.Kind),
		Detail:  err.Detail,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = errorPageTemplate.Execute(w, data)
}

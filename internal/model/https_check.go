package model

import "time"

// NonHTTPSError is the error text recorded for URLs whose scheme is not https.
const NonHTTPSError = "Non-HTTPS URL"

// HTTPSCheck records the HTTPS/TLS audit of one matched landing URL.
//
// Design decision: StatusCode and SSLValid are pointers because "not
// measured" is different from a zero value. A check for a plain-http URL
// has no status code at all, and a check that was never completed has no
// validity verdict.
type HTTPSCheck struct {
	// URL is the audited landing URL.
	URL string `json:"url"`

	// Protocol is the URL scheme, "http" when the URL has none.
	Protocol string `json:"protocol"`

	// StatusCode is the final HTTP status, present only when a response was received.
	StatusCode *int `json:"status_code,omitempty"`

	// SSLValid is true only for a successful HTTPS fetch.
	SSLValid *bool `json:"ssl_valid,omitempty"`

	// SSLError describes the failure when SSLValid is false.
	SSLError string `json:"ssl_error,omitempty"`

	// CheckedAt is when the audit finished.
	CheckedAt time.Time `json:"checked_at"`

	// TLSVersion is the negotiated protocol version, e.g. "TLS 1.3".
	TLSVersion string `json:"tls_version,omitempty"`

	// CertIssuer is the issuer common name of the leaf certificate.
	CertIssuer string `json:"cert_issuer,omitempty"`

	// CertNotAfter is the expiry of the leaf certificate.
	CertNotAfter *time.Time `json:"cert_not_after,omitempty"`
}

// MarkValid records a successful HTTPS fetch.
func (c *HTTPSCheck) MarkValid(statusCode int) {
	valid := true
	c.SSLValid = &valid
	c.StatusCode = &statusCode
	c.SSLError = ""
}

// MarkInvalid records a failed or non-HTTPS audit.
func (c *HTTPSCheck) MarkInvalid(reason string) {
	valid := false
	c.SSLValid = &valid
	c.SSLError = reason
}

// SetStatusCode records the status code of a received response.
func (c *HTTPSCheck) SetStatusCode(code int) {
	c.StatusCode = &code
}

// Valid reports whether the audit succeeded.
func (c HTTPSCheck) Valid() bool {
	return c.SSLValid != nil && *c.SSLValid
}

// Invalid reports whether the audit produced an explicit failure verdict.
func (c HTTPSCheck) Invalid() bool {
	return c.SSLValid != nil && !*c.SSLValid
}

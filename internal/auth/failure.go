package auth

import (
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
)

// AuthFailure means GitHub denied the authorization or returned no usable
// grant. Params keeps the callback query for diagnostics, with secret
// parameters redacted.
type AuthFailure struct {
	Code        string
	Description string
	Params      url.Values
	Err         error
}

func (e *AuthFailure) Error() string {
	if e.Description == "" {
		return "auth: access denied: " + e.Code
	}
	return fmt.Sprintf("auth: access denied: %s: %s", e.Code, e.Description)
}

func (e *AuthFailure) Unwrap() error { return e.Err }

// FormatParams renders the callback parameters in a stable order. Secret
// parameters are redacted even if the failure was built from a raw query.
func (e *AuthFailure) FormatParams() string {
	params := RedactParams(e.Params)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, params[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ResolutionKind classifies why the profile fetch failed.
type ResolutionKind string

const (
	ResolutionTransport    ResolutionKind = "transport"
	ResolutionStatus       ResolutionKind = "status"
	ResolutionMalformed    ResolutionKind = "malformed"
	ResolutionMissingLogin ResolutionKind = "missing_login"
)

// ResolutionFailure means the caller's profile could not be fetched or did
// not carry a login.
type ResolutionFailure struct {
	Kind   ResolutionKind
	Detail string
	Err    error
}

func (e *ResolutionFailure) Error() string {
	return fmt.Sprintf("auth: resolving identity: %s: %s", e.Kind, e.Detail)
}

func (e *ResolutionFailure) Unwrap() error { return e.Err }

// VerificationFailure means the organization directory could not answer.
// Callers treat it as "not a member" for access control but report it
// differently. Token is the access token that was used.
type VerificationFailure struct {
	Token  string
	Org    string
	Login  string
	Detail string
	Err    error
}

func (e *VerificationFailure) Error() string {
	return fmt.Sprintf("auth: verifying %s in %s: %s", e.Login, e.Org, e.Detail)
}

func (e *VerificationFailure) Unwrap() error { return e.Err }

// RedactToken keeps the first four characters of a token for log and
// message correlation.
func RedactToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", 8)
}

// secretParams are callback parameters that grant access on their own.
var secretParams = []string{"code", "access_token"}

// RedactParams copies q with every secret parameter passed through
// RedactToken. Applying it twice gives the same result.
func RedactParams(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		if !slices.Contains(secretParams, k) {
			out[k] = v
			continue
		}
		redacted := make([]string, len(v))
		for i, s := range v {
			redacted[i] = RedactToken(s)
		}
		out[k] = redacted
	}
	return out
}

package enums

import "fmt"

// ExpirySource records how a warranty expiry date was derived, so a
// defaulted duration can be flagged to the user as a guess.
type ExpirySource string

const (
	// ExpirySourceExplicit means the document or user stated the expiry date.
	ExpirySourceExplicit ExpirySource = "explicit"
	// ExpirySourceDuration means the expiry was computed from purchase date plus
	// an extracted/declared duration.
	ExpirySourceDuration ExpirySource = "duration"
	// ExpirySourceDefault means no duration was found and the policy default was
	// applied; lower confidence than the other two.
	ExpirySourceDefault ExpirySource = "default_duration"
	// ExpirySourceNone means no expiry could be derived at all.
	ExpirySourceNone ExpirySource = "none"
)

var validExpirySources = []ExpirySource{
	ExpirySourceExplicit,
	ExpirySourceDuration,
	ExpirySourceDefault,
	ExpirySourceNone,
}

// String returns the literal string for the source.
func (e ExpirySource) String() string {
	return string(e)
}

// IsValid reports whether the source is known.
func (e ExpirySource) IsValid() bool {
	for _, candidate := range validExpirySources {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseExpirySource converts raw input into an ExpirySource.
func ParseExpirySource(value string) (ExpirySource, error) {
	for _, candidate := range validExpirySources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid expiry source %q", value)
}

package domain

import "taxbridge/pkg/errors"

// ArtifactKind is a domain value that identifies the class of downstream
// fiscal artifact tied to a business event.
// Invariant: the value must be one of the supported kinds.
//
// Usage: construct via ParseArtifactKind at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type ArtifactKind string

// Supported artifact kinds. One business event may require at most one
// artifact of each kind.
const (
	ArtifactKindReceipt ArtifactKind = "receipt"
	ArtifactKindPayment ArtifactKind = "payment"
)

// validArtifactKinds is the single source of truth for valid kinds.
var validArtifactKinds = map[ArtifactKind]bool{
	ArtifactKindReceipt: true,
	ArtifactKindPayment: true,
}

// ParseArtifactKind constructs an ArtifactKind from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseArtifactKind(s string) (ArtifactKind, error) {
	if s == "" {
		return "", errors.New(errors.CodeInvalidInput, "artifact kind cannot be empty")
	}
	k := ArtifactKind(s)
	if !k.IsValid() {
		return "", errors.Newf(errors.CodeInvalidInput, "invalid artifact kind %q", s)
	}
	return k, nil
}

// Kinds returns all supported artifact kinds in stable order.
func Kinds() []ArtifactKind {
	return []ArtifactKind{ArtifactKindReceipt, ArtifactKindPayment}
}

// IsValid checks if the kind is one of the supported enum values.
func (k ArtifactKind) IsValid() bool {
	return validArtifactKinds[k]
}

// String returns the string representation of the kind.
func (k ArtifactKind) String() string {
	return string(k)
}

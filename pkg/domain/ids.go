// Package domain holds the typed identifiers shared across taxbridge features.
//
// Identifiers are domain primitives: construct them via the Parse functions at
// trust boundaries to enforce the national formats; direct casting bypasses
// validation.
package domain

import (
	"fmt"
	"regexp"

	"taxbridge/pkg/errors"
)

// RegistryNumber is the 7-digit national registry number (PIN) that is the
// primary identity key of a legal entity. Immutable once attached to an
// Organization.
type RegistryNumber string

// TaxpayerID is the 11-digit identifier issued by the tax authority (TIN).
// May be empty until the entity is first resolved against the authority.
type TaxpayerID string

// ProducerName identifies an external integration capable of creating
// artifacts (e.g. "ebarimt-pos", "payment-gateway").
type ProducerName string

// EventRef identifies a source-of-truth business record by document type and
// document id, e.g. ("Sales Invoice", "SINV-00042").
type EventRef struct {
	DocType string `json:"doc_type"`
	DocID   string `json:"doc_id"`
}

var (
	registryNumberRe = regexp.MustCompile(`^[0-9]{7}$`)
	taxpayerIDRe     = regexp.MustCompile(`^[0-9]{11}$`)
)

// ParseRegistryNumber validates the 7-digit registry number format.
func ParseRegistryNumber(s string) (RegistryNumber, error) {
	if s == "" {
		return "", errors.New(errors.CodeInvalidInput, "registry number cannot be empty")
	}
	if !registryNumberRe.MatchString(s) {
		return "", errors.Newf(errors.CodeInvalidInput, "registry number must be 7 digits, got %q", s)
	}
	return RegistryNumber(s), nil
}

// ParseTaxpayerID validates the 11-digit taxpayer identifier format.
func ParseTaxpayerID(s string) (TaxpayerID, error) {
	if s == "" {
		return "", errors.New(errors.CodeInvalidInput, "taxpayer id cannot be empty")
	}
	if !taxpayerIDRe.MatchString(s) {
		return "", errors.Newf(errors.CodeInvalidInput, "taxpayer id must be 11 digits, got %q", s)
	}
	return TaxpayerID(s), nil
}

// IsNil reports whether the registry number is unset.
func (r RegistryNumber) IsNil() bool { return r == "" }

// String returns the string representation.
func (r RegistryNumber) String() string { return string(r) }

// IsNil reports whether the taxpayer id is unset.
func (t TaxpayerID) IsNil() bool { return t == "" }

// String returns the string representation.
func (t TaxpayerID) String() string { return string(t) }

// String returns the string representation.
func (p ProducerName) String() string { return string(p) }

// NewEventRef builds an EventRef, rejecting empty components.
func NewEventRef(docType, docID string) (EventRef, error) {
	if docType == "" || docID == "" {
		return EventRef{}, errors.New(errors.CodeInvalidInput, "event ref requires doc type and doc id")
	}
	return EventRef{DocType: docType, DocID: docID}, nil
}

// IsNil reports whether the event ref is unset.
func (e EventRef) IsNil() bool { return e.DocType == "" && e.DocID == "" }

// String renders the ref in "DocType/DocID" form for keys and logs.
func (e EventRef) String() string {
	return fmt.Sprintf("%s/%s", e.DocType, e.DocID)
}

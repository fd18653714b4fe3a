package models

import "taxbridge/pkg/domain"

// FragmentSource tags where an identity fragment was observed. Resolution
// never trusts one source over another for the registry number: disagreement
// is a hard error, not a precedence decision.
type FragmentSource string

const (
	// SourceEvent: identifiers embedded on the business event itself.
	SourceEvent FragmentSource = "event"
	// SourceProducerCache: identifiers a producer cached from prior calls.
	SourceProducerCache FragmentSource = "producer_cache"
	// SourceExternalLookup: identifiers fetched from an authority beforehand.
	SourceExternalLookup FragmentSource = "external_lookup"
	// SourceStaticConfig: identifiers from deployment configuration.
	SourceStaticConfig FragmentSource = "static_config"
)

// String returns the string representation.
func (s FragmentSource) String() string { return string(s) }

// IdentityFragment is one source's partial view of an organization's
// identity. Fragments are supplied pre-fetched; the resolver performs no
// network calls.
type IdentityFragment struct {
	Source         FragmentSource
	RegistryNumber domain.RegistryNumber
	TaxpayerID     domain.TaxpayerID
	DisplayName    string
	Auxiliary      map[domain.ProducerName]string
}

// ResolutionContext carries everything the resolver needs for one business
// event.
type ResolutionContext struct {
	Event     domain.EventRef
	Fragments []IdentityFragment
}

package models

import (
	"time"

	"taxbridge/pkg/domain"
)

// Organization is the canonical legal entity shared by every integration.
// RegistryNumber is the immutable identity key; everything else is enrichment
// learned lazily from producers and external lookups.
type Organization struct {
	RegistryNumber domain.RegistryNumber
	TaxpayerID     domain.TaxpayerID
	DisplayName    string

	// Auxiliary holds producer-specific identifiers (POS terminal number,
	// gateway merchant code, entity id in an external system) keyed by
	// producer name. Merge-only: a populated entry is never reduced to empty.
	Auxiliary map[domain.ProducerName]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so stores can hand out records without sharing
// the auxiliary map.
func (o *Organization) Clone() *Organization {
	cp := *o
	cp.Auxiliary = make(map[domain.ProducerName]string, len(o.Auxiliary))
	for k, v := range o.Auxiliary {
		cp.Auxiliary[k] = v
	}
	return &cp
}

// MergeFrom folds the other organization's identifiers into this one without
// downgrading anything already present. Returns true when a field changed.
//
// Rules:
//   - RegistryNumber never changes (caller guarantees both sides agree).
//   - TaxpayerID and DisplayName fill in only when currently empty.
//   - Auxiliary entries are added when absent or currently empty; a non-empty
//     stored value always wins.
func (o *Organization) MergeFrom(other *Organization) bool {
	changed := false
	if o.TaxpayerID.IsNil() && !other.TaxpayerID.IsNil() {
		o.TaxpayerID = other.TaxpayerID
		changed = true
	}
	if o.DisplayName == "" && other.DisplayName != "" {
		o.DisplayName = other.DisplayName
		changed = true
	}
	if o.Auxiliary == nil {
		o.Auxiliary = make(map[domain.ProducerName]string)
	}
	for name, value := range other.Auxiliary {
		if value == "" {
			continue
		}
		if existing := o.Auxiliary[name]; existing == "" {
			o.Auxiliary[name] = value
			changed = true
		}
	}
	return changed
}

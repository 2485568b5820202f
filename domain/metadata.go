package domain

import (
	"regexp"
	"strconv"
)

// MetadataVariant selects which optional fields an upload must carry. The
// product has shipped several shapes; they share one type and one central
// validator instead of per-screen checks.
type MetadataVariant int

const (
	// VariantPurpose tags the post with a purpose category only.
	VariantPurpose MetadataVariant = iota
	// VariantAddress tags the post with a street address only.
	VariantAddress
	// VariantBuddySpend tags the post with a starring buddy plus the
	// currency and amount spent.
	VariantBuddySpend
)

// amountPattern accepts a whole number optionally followed by a decimal
// point and at most two fraction digits.
var amountPattern = regexp.MustCompile(`^\d+\.?\d{0,2}$`)

// UploadMetadata is attached to a recorded artifact before upload.
type UploadMetadata struct {
	Variant  MetadataVariant
	Location GeoPoint
	Address  string
	Purpose  string
	Currency string
	Amount   string // decimal string, e.g. "12.34"
	BuddyUID string
}

// Validate checks the fields the configured variant requires. It runs
// before any network call so bad input never leaves the device.
func (m *UploadMetadata) Validate() error {
	if m.Location.IsZero() {
		return &ValidationError{Field: "location", Reason: "required"}
	}

	switch m.Variant {
	case VariantPurpose:
		if m.Purpose == "" {
			return &ValidationError{Field: "purpose", Reason: "required"}
		}
	case VariantAddress:
		if m.Address == "" {
			return &ValidationError{Field: "address", Reason: "required"}
		}
	case VariantBuddySpend:
		if m.BuddyUID == "" {
			return &ValidationError{Field: "buddy", Reason: "required"}
		}
		if m.Currency == "" {
			return &ValidationError{Field: "currency", Reason: "required"}
		}
		if m.Amount == "" {
			return &ValidationError{Field: "amount", Reason: "required"}
		}
		if !amountPattern.MatchString(m.Amount) {
			return &ValidationError{Field: "amount", Reason: "must be a number with up to two decimal places"}
		}
	default:
		return &ValidationError{Field: "variant", Reason: "unknown"}
	}
	return nil
}

// Pairs returns the metadata as key/value pairs for the upload request.
// Only the fields of the active variant are included.
func (m *UploadMetadata) Pairs() map[string]string {
	pairs := map[string]string{
		"latitude":  strconv.FormatFloat(m.Location.Latitude, 'f', -1, 64),
		"longitude": strconv.FormatFloat(m.Location.Longitude, 'f', -1, 64),
	}
	switch m.Variant {
	case VariantPurpose:
		pairs["purpose"] = m.Purpose
	case VariantAddress:
		pairs["address"] = m.Address
	case VariantBuddySpend:
		pairs["starring_uid"] = m.BuddyUID
		pairs["currency"] = m.Currency
		pairs["money_spent"] = m.Amount
	}
	return pairs
}

// Package risk scores policy sentences against a fixed privacy-risk taxonomy.
package risk

import "fmt"

// Category is one of the seven privacy-risk categories.
type Category string

const (
	ThirdPartySharing     Category = "third_party_sharing"
	InternationalTransfer Category = "international_transfer"
	SensitiveData         Category = "sensitive_data"
	LongRetention         Category = "long_retention"
	MarketingConsent      Category = "marketing_consent"
	PurposeChange         Category = "purpose_change"
	Subcontracting        Category = "subcontracting"
)

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{
		ThirdPartySharing,
		InternationalTransfer,
		SensitiveData,
		LongRetention,
		MarketingConsent,
		PurposeChange,
		Subcontracting,
	}
}

func (c Category) Valid() bool {
	switch c {
	case ThirdPartySharing, InternationalTransfer, SensitiveData, LongRetention,
		MarketingConsent, PurposeChange, Subcontracting:
		return true
	default:
		return false
	}
}

// ParseCategory validates a category name.
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if !c.Valid() {
		return "", fmt.Errorf("unknown risk category %q", raw)
	}
	return c, nil
}

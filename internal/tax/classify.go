package tax

import "strings"

var (
	// Category fragments that mark a product as a physical repair part.
	partCategoryKeywords = []string{"repair", "parts"}
	// Name fragments that mark a product as a physical component or accessory.
	partNameKeywords = []string{"screen", "battery", "camera", "speaker", "charger", "case"}

	serviceCategoryKeywords = []string{"service"}
	serviceNameKeywords     = []string{"repair service", "installation", "diagnostic"}
)

// Classify resolves the tax code for a product from its category and name.
// Matching is case-insensitive. Parts win over services, and anything
// unrecognised is treated as tangible goods since the catalog is mobile parts.
func (c Config) Classify(category, name string) string {
	cat := strings.ToLower(category)
	productName := strings.ToLower(name)

	if containsAny(cat, partCategoryKeywords) || containsAny(productName, partNameKeywords) {
		return c.DefaultTaxCode
	}

	if containsAny(cat, serviceCategoryKeywords) || containsAny(productName, serviceNameKeywords) {
		return c.ServiceTaxCode
	}

	return c.DefaultTaxCode
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

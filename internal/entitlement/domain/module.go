package domain

import "strings"

// FreeModules lists the modules available without a Pro subscription.
var FreeModules = []string{
	"customers",
	"leads",
	"suppliers",
	"additional-services",
	"referral",
	"account",
	"dashboard",
	"notifications",
}

// ProModules maps Pro-only modules to their display names.
var ProModules = map[string]string{
	"orders":       "Order Management",
	"pos":          "Point of Sale",
	"products":     "Product Catalogue",
	"catalogue":    "Service Catalogue",
	"services":     "Services",
	"bookings":     "Bookings",
	"appointments": "Appointments",
	"analytics":    "Analytics & Reports",
	"marketing":    "Marketing & Greetings",
	"greeting":     "Marketing & Greetings",
	"invoicing":    "Invoicing",
	"bills":        "Billing",
	"coupons":      "Coupons & Offers",
	"website":      "Website Builder",
	"inventory":    "Inventory Management",
	"employees":    "Employee Management",
	"hr":           "HR Management",
}

// IsFreeModule reports whether module is reachable on the free tier.
// Names are compared letters-only, so "Additional Services" and
// "additional_services" both match "additional-services".
func IsFreeModule(module string) bool {
	normalized := lettersOnly(module)
	if normalized == "" {
		return false
	}
	for _, m := range FreeModules {
		if strings.Contains(normalized, lettersOnly(m)) {
			return true
		}
	}
	return false
}

// ModuleDisplayName returns the human name of module, or module itself
// when it is not a known Pro module.
func ModuleDisplayName(module string) string {
	if name, ok := ProModules[strings.ToLower(module)]; ok {
		return name
	}
	return module
}

// ModuleRestrictedMessage returns the denial text for a module.
func ModuleRestrictedMessage(module string) string {
	return "Upgrade to Pro to access " + ModuleDisplayName(module)
}

func lettersOnly(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

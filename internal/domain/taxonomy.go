package domain

// The fixed categorization taxonomy. Classifier output is validated against
// this table; anything outside it degrades to CategoryUncategorized.
const (
	CategoryGroceries     = "Groceries & Household"
	CategoryTransport     = "Transport"
	CategoryDining        = "Dining & Takeaway"
	CategoryShopping      = "Shopping & Retail"
	CategoryUtilities     = "Utilities & Bills"
	CategoryHealth        = "Health & Fitness"
	CategoryEntertainment = "Entertainment & Gaming"
	CategoryDigital       = "Digital & Subscriptions"
	CategoryAccount       = "Account Services"

	// Reserved categories assigned by the engine, never by the classifier.
	CategoryUncategorized    = "Uncategorized"
	CategoryTransfer         = "Transfer"
	CategoryOutgoingTransfer = "Outgoing Transfer"
	CategoryIncomingTransfer = "Incoming Transfer"
)

// Taxonomy maps each category to its fixed subcategory enumeration.
var Taxonomy = map[string][]string{
	CategoryGroceries: {
		"Supermarkets & Grocery Stores",
		"Convenience Stores",
		"Household Supplies",
		"Farmers' Markets",
	},
	CategoryTransport: {
		"Public Transport",
		"Fuel & Maintenance",
		"Taxi & Rideshare",
		"Parking & Tolls",
		"Vehicle Insurance & Registration",
	},
	CategoryDining: {
		"Restaurants",
		"Cafés & Bakeries",
		"Food Delivery",
		"Fast Food & Quick-Service",
		"Coffee & Snacks",
	},
	CategoryShopping: {
		"Apparel & Accessories",
		"Electronics & Gadgets",
		"Gifts & Specialty Retail",
		"Home Décor & Furniture",
		"Sports & Outdoor Gear",
	},
	CategoryUtilities: {
		"Electricity",
		"Water",
		"Gas",
		"Mobile Phone",
		"Internet",
		"Rent or Mortgage Payments",
		"Insurance",
	},
	CategoryHealth: {
		"Gym & Fitness Classes",
		"Medical & Dental Bills",
		"Pharmacy & Medications",
		"Wellness & Spa",
	},
	CategoryEntertainment: {
		"Movies & Theaters",
		"Video Games & In-App Purchases",
		"Live Events & Concerts",
		"Books & Magazines",
	},
	CategoryDigital: {
		"Streaming Services",
		"App Store Purchases",
		"Software & SaaS",
		"Cloud Storage & Tools",
	},
	CategoryAccount: {
		"Refunds & Rebates",
		"Bank Fees & Charges",
		"ATM Withdrawals",
		"Account Maintenance",
		"Penalties",
	},
}

// ValidateCategoryPair reports whether category/subCategory is a valid
// taxonomy entry. An empty subcategory is accepted for any valid category.
func ValidateCategoryPair(category, subCategory string) bool {
	subs, ok := Taxonomy[category]
	if !ok {
		return false
	}
	if subCategory == "" {
		return true
	}
	for _, s := range subs {
		if s == subCategory {
			return true
		}
	}
	return false
}

// Categories returns the taxonomy category names in a stable order.
func Categories() []string {
	return []string{
		CategoryGroceries,
		CategoryTransport,
		CategoryDining,
		CategoryShopping,
		CategoryUtilities,
		CategoryHealth,
		CategoryEntertainment,
		CategoryDigital,
		CategoryAccount,
	}
}

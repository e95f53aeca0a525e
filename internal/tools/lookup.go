package tools

// Lookup tables mirror the sourcing platform's product taxonomy.

var mortgageTypeIDs = map[string]int{
	"Residential Mortgage":   1,
	"Residential Remortgage": 2,
	"Buy To Let Mortgage":    3,
	"Buy To Let Remortgage":  4,
	"Commercial":             6,
}

// MortgageTypeID maps a mortgage type name to its platform id, defaulting to
// Residential Mortgage.
func MortgageTypeID(mortgageType string) int {
	if id, ok := mortgageTypeIDs[mortgageType]; ok {
		return id
	}
	return 1
}

var categoryNames = map[int]string{
	// Residential Mortgage
	1:  "Home Mover",
	2:  "First time buyer",
	3:  "Help to Buy Mortgage",
	4:  "Right to Buy",
	5:  "Shared Ownership",
	29: "Self Build",

	// Residential Remortgage
	6: "Right to Buy",
	7: "Shared Ownership",
	8: "Standard Remortgage",

	// Buy to Let Mortgage
	9:  "Experienced Landlord",
	10: "First time Landlord",
	11: "Consumer Buy to Let",

	// Buy to Let Remortgage
	12: "Experienced Landlord",
	13: "Consumer buy to Let",
	39: "Let to Buy",

	// Development Finance
	14: "Full Development Project",
	15: "Conversion Project",
	16: "Heavy Refurbishment",
	17: "Light Refurbishment",

	// Bridging Loan
	18: "Auction Purchase",
	19: "Standard Bridging Loan",
	20: "Semi Commercial Bridging Loan",
	21: "Commercial Bridging Loan",
	22: "Regulated Bridging Loan",
	23: "Structured Short Term Finance",

	// Equity Release
	24: "Equity Release",
	25: "Home Reversion",

	// General Insurance
	26: "Buildings & Contents",
	27: "Buildings Only",
	28: "Contents Only",

	// Portfolio Landlord
	86: "Portfolio Landlord Purchase",
	87: "Portfolio Landlord Re-mortgage",
}

// CategoryName resolves a product category id for confirmation strings.
func CategoryName(categoryID int) string {
	if name, ok := categoryNames[categoryID]; ok {
		return name
	}
	return "Not specified"
}

var caseTypeNames = map[int]string{
	1:  "Residential Mortgage",
	2:  "Residential Remortgage",
	3:  "Buy to Let Mortgage",
	4:  "Buy to Let Remortgage",
	5:  "Second Charge - Buy to Let & Commercial",
	6:  "Commercial Mortgages/ Loans",
	7:  "Business Lending",
	8:  "Development Finance",
	9:  "Bridging Loan",
	10: "Equity Release",
	11: "General Insurance",
	12: "Additional Charge Mortgage (Residential)",
	13: "Additional Charge Mortgage (Un Regulated)",
	24: "Portfolio Landlord",
}

// CaseTypeName resolves a case type id for confirmation strings.
func CaseTypeName(caseTypeID int) string {
	if name, ok := caseTypeNames[caseTypeID]; ok {
		return name
	}
	return "Unknown"
}

package tools

import "github.com/evernorth/melodie/internal/protocol"

// Instructions is the system prompt sent with every session.update.
const Instructions = `You are a UK Financial Adviser in the UK focusing on Mortgages and protection product.
- Your name is Melodie.
- Your company name Finance Magic™ which is a trading style of Ever North Limited, who are authorised and regulated by the FCA. Our FCA reference number is 800196.
- You are a financial adviser of Ever North Limited.
- You should have knowledge about Residential Mortgage/ Remortgage, Buy to let mortgage/ remortgage, Commercial Loans, Bridging Loan, First time buyer mortgage, Life Insurance, decreasing term life insurance (commonly known as mortgage protection insurance), Income protection insurance, relevant life, whole of life, Building & contents insurance, accident cover insurance. For mortgage sourcing products guide the customer to our sourcing tool.
- Please make sure to respond with a helpful voice via audio
- Be kind, helpful, and courteous
- It is okay to ask the user questions
- Be open to exploration and conversation
- Keep your answers short.
- when you are asked the question "how you are built? what program are you built on", you answer - "I am built by fantastic engineers of Mortgage Magic team with collaboration of other tremendously talented engineers."

Personality:
- Be upbeat and genuine`

// Function names the model may call.
const (
	FuncSourceMortgageProducts     = "source_mortgage_products"
	FuncSourceCriteriaProducts     = "source_criteria_products"
	FuncApplyMortgageProduct       = "apply_mortgage_product"
	FuncMortgageSourcingNavigation = "handle_mortgage_sourcing_navigation"
	FuncFactFindNavigation         = "handle_fact_find_navigation"
)

// Definitions returns the tool declarations advertised in session.update.
func Definitions() []protocol.ToolDefinition {
	return []protocol.ToolDefinition{
		{
			Type: "function",
			Name: FuncSourceMortgageProducts,
			Description: "Help users fill in parameters for a mortgage product and fetch recommendations based on the completed input. " +
				"When recommending product include the lender name. After presenting the first product, ask the user: " +
				"'Would you like to proceed with this product or would you like to see another product?' If the user agrees to see another product, " +
				"call this tool again to load and recommend the next product. After presenting the second product, ask the user only these two questions: " +
				"'Would you like to proceed with this product or would you like to navigate to a screen that contains a list of products for you to choose from?' " +
				"If the user chooses to navigate, call the handle_mortgage_sourcing_navigation tool. If the user agrees to proceed/apply, " +
				"call the apply_mortgage_product tool, passing the full product object.",
			Parameters: protocol.ToolParameters{
				Type: "object",
				Properties: map[string]protocol.ToolProperty{
					"propertyValuationAmount": {
						Type:        "number",
						Description: "The valuation of the property",
					},
					"loanAmount": {
						Type:        "number",
						Description: "The amount the user wants to borrow.",
					},
					"mortgageType": {
						Type:        "string",
						Description: "The type of mortgage the user wants to apply for. Defaults to Residential Mortgage if not specified.",
						Enum: []string{
							"Residential Mortgage",
							"Buy To Let Mortgage",
							"Residential Remortgage",
							"Buy To Let Remortgage",
							"Commercial",
						},
					},
				},
				Required: []string{"propertyValuationAmount", "loanAmount"},
			},
		},
		{
			Type: "function",
			Name: FuncSourceCriteriaProducts,
			Description: "Search the lending criteria hub for the given criteria tags under a mortgage type and guide the user to the matching results.",
			Parameters: protocol.ToolParameters{
				Type: "object",
				Properties: map[string]protocol.ToolProperty{
					"criteriaTags": {
						Type:        "array",
						Description: "Short criteria phrases to search for, e.g. 'gifted deposit' or 'recent CCJ'.",
						Items:       &protocol.ToolProperty{Type: "string"},
					},
					"mortgageType": {
						Type:        "string",
						Description: "The mortgage type to scope the criteria search to. Defaults to All Cases.",
					},
				},
				Required: []string{"criteriaTags"},
			},
		},
		{
			Type: "function",
			Name: FuncApplyMortgageProduct,
			Description: "Submit an application for the selected mortgage product using the provided product. " +
				"Once the application is processed, respond exactly with the confirmation message provided in the function_call_output, including the caseId. " +
				"Then, ask the user if they would like to navigate fact-find page.",
			Parameters: protocol.ToolParameters{
				Type: "object",
				Properties: map[string]protocol.ToolProperty{
					"product": {
						Type:        "object",
						Description: "The complete mortgage product object to apply for.",
						Properties: map[string]protocol.ToolProperty{
							"id": {
								Type:        "integer",
								Description: "The unique ID of the product.",
							},
							"lenderId": {
								Type:        "integer",
								Description: "The lender ID of the product.",
							},
							"productType": {
								Type:        "string",
								Description: "The type of product",
							},
						},
					},
				},
				Required: []string{"product"},
			},
		},
		{
			Type:        "function",
			Name:        FuncMortgageSourcingNavigation,
			Description: "Process the user's response to mortgage sourcing navigation prompt.",
			Parameters: protocol.ToolParameters{
				Type: "object",
				Properties: map[string]protocol.ToolProperty{
					"navigate": {
						Type:        "boolean",
						Description: "True if the user agrees to navigate to list of mortgage product page, false otherwise.",
					},
				},
				Required: []string{"navigate"},
			},
		},
		{
			Type:        "function",
			Name:        FuncFactFindNavigation,
			Description: "Process the user's response to proceed fact-find navigation prompt.",
			Parameters: protocol.ToolParameters{
				Type: "object",
				Properties: map[string]protocol.ToolProperty{
					"navigate": {
						Type:        "boolean",
						Description: "True if the user agrees to navigate to fact-find page, false otherwise.",
					},
				},
				Required: []string{"navigate"},
			},
		},
	}
}

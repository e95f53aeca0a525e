// Package cases builds mortgage application payloads and hands them to the
// hosting page, which owns the actual case API.
package cases

import (
	"fmt"
	"time"

	"github.com/evernorth/melodie/internal/bridge"
)

// Notifier delivers envelopes to the hosting page.
type Notifier interface {
	Notify(eventType string, data any) error
}

// ProductSelection identifies the product the user chose to apply for.
type ProductSelection struct {
	ID          int    `json:"id"`
	LenderID    int    `json:"lenderId"`
	ProductType string `json:"productType"`
}

// SearchContext is the sticky state captured by the most recent product
// search. Application submission falls back to it when the product object
// omits a field.
type SearchContext struct {
	PropertyValuationAmount float64
	LoanAmount              float64
	MortgageType            string
	TotalTermMonth          int
	PaymentMethod           string
	InitialRatePeriodMonths int
	Country                 string
}

// CaseDetails carries applicant financials collected earlier in the flow.
type CaseDetails struct {
	OutstandingBalance float64
	Deposit            float64
	AnnualIncome       float64
	RentalIncome       float64
	GDV                float64
}

// Application is the normalized case payload. Field names, including the
// capitalized Country pair, follow the case API contract.
type Application struct {
	UserID                  int     `json:"userId"`
	Status                  int     `json:"status"`
	CreationDate            string  `json:"creationDate"`
	UpdatedDate             string  `json:"updatedDate"`
	VersionNumber           int     `json:"versionNumber"`
	UserCompanyID           int     `json:"userCompanyId"`
	LenderCompanyID         int     `json:"lenderCompanyId"`
	ProductID               int     `json:"productId"`
	CaseType                string  `json:"caseType"`
	PurposeOfLoan           string  `json:"purposeOfLoan"`
	PropertyValuationAmount float64 `json:"propertyValuationAmount"`
	OutstandingLoanAmount   float64 `json:"outStandingLoanAmount"`
	DepositAmount           float64 `json:"depositAmount"`
	LoanAmount              float64 `json:"loanAmount"`
	PreferredTermYear       int     `json:"preferredMortgageTermYear"`
	PreferredTermMonth      int     `json:"preferredMortgageTermMonth"`
	PaymentMethod           string  `json:"paymentMethod"`
	InitialPeriodMonth      int     `json:"initialPeriodMonth"`
	AnnualIncome            float64 `json:"anualIncome"`
	AnnualRentalIncome      float64 `json:"anualRentalIncome"`
	TotalGDV                float64 `json:"totalGrossDevelopmentValue"`
	Title                   string  `json:"title"`
	Description             string  `json:"description"`
	ID                      int     `json:"id"`
	Country                 string  `json:"Country"`
	CurrencySymbol          string  `json:"CurrencySymbol"`
}

// Service submits applications through the host bridge.
type Service struct {
	notifier Notifier
	now      func() time.Time
}

func NewService(notifier Notifier) *Service {
	return &Service{notifier: notifier, now: time.Now}
}

// SubmitApplication normalizes the selection into a case payload, asks the
// host to create the case, and announces the created application.
func (s *Service) SubmitApplication(userID, companyID int, product ProductSelection, search SearchContext, details CaseDetails) (Application, error) {
	termMonths := search.TotalTermMonth
	if termMonths <= 0 {
		termMonths = 240
	}
	paymentMethod := search.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = "Repayment"
	}
	initialPeriod := search.InitialRatePeriodMonths
	if initialPeriod <= 0 {
		initialPeriod = 24
	}
	caseType := product.ProductType
	if caseType == "" {
		caseType = search.MortgageType
	}
	country := search.Country
	if country == "" {
		country = "United Kingdom"
	}
	lenderID := product.LenderID
	if lenderID == 0 {
		lenderID = 456
	}
	productID := product.ID
	if productID == 0 {
		productID = 123
	}

	now := s.now().UTC().Format(time.RFC3339)
	app := Application{
		UserID:                  userID,
		CreationDate:            now,
		UpdatedDate:             now,
		VersionNumber:           1,
		UserCompanyID:           companyID,
		LenderCompanyID:         lenderID,
		ProductID:               productID,
		CaseType:                caseType,
		PropertyValuationAmount: search.PropertyValuationAmount,
		OutstandingLoanAmount:   details.OutstandingBalance,
		DepositAmount:           details.Deposit,
		LoanAmount:              search.LoanAmount,
		PreferredTermYear:       termMonths / 12,
		PreferredTermMonth:      termMonths % 12,
		PaymentMethod:           paymentMethod,
		InitialPeriodMonth:      initialPeriod,
		AnnualIncome:            details.AnnualIncome,
		AnnualRentalIncome:      details.RentalIncome,
		TotalGDV:                details.GDV,
		Title:                   caseType,
		Country:                 country,
		CurrencySymbol:          "£",
	}

	if err := s.notifier.Notify(bridge.EventCreateMortgageCase, app); err != nil {
		return Application{}, fmt.Errorf("submit case: %w", err)
	}
	err := s.notifier.Notify(bridge.EventApplicationCreated, map[string]any{
		"productId":     app.ProductID,
		"lenderId":      app.LenderCompanyID,
		"loanAmount":    app.LoanAmount,
		"propertyValue": app.PropertyValuationAmount,
		"mortgageType":  app.CaseType,
	})
	if err != nil {
		return Application{}, fmt.Errorf("announce application: %w", err)
	}
	return app, nil
}

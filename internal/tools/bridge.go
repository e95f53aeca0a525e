// Package tools dispatches model function calls to local handlers and feeds
// the results back over the realtime side channel.
package tools

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/evernorth/melodie/internal/bridge"
	"github.com/evernorth/melodie/internal/cases"
	"github.com/evernorth/melodie/internal/observability"
	"github.com/evernorth/melodie/internal/protocol"
)

// Session is the slice of the session manager the bridge needs: a side
// channel to the model and the current conversation mode.
type Session interface {
	SendSideChannel(v any) error
	ResponseModalities() []string
	InVoiceMode() bool
	StopRecording() error
}

// Notifier delivers envelopes to the hosting page.
type Notifier interface {
	Notify(eventType string, data any) error
}

// Config wires a Bridge. Metrics may be nil.
type Config struct {
	Session     Session
	Notifier    Notifier
	Cases       *cases.Service
	Metrics     *observability.Metrics
	UserID      int
	CompanyID   int
	OutputDelay time.Duration
}

// Bridge routes function calls by name. Unknown names and malformed
// arguments become textual outputs for the model; the user never sees a
// function-call failure directly.
type Bridge struct {
	session     Session
	notifier    Notifier
	cases       *cases.Service
	metrics     *observability.Metrics
	userID      int
	companyID   int
	outputDelay time.Duration

	// after is replaced in tests to make the continuation delay synchronous.
	after func(time.Duration, func())

	mu      sync.Mutex
	search  cases.SearchContext
	details cases.CaseDetails
}

func NewBridge(cfg Config) *Bridge {
	return &Bridge{
		session:     cfg.Session,
		notifier:    cfg.Notifier,
		cases:       cfg.Cases,
		metrics:     cfg.Metrics,
		userID:      cfg.UserID,
		companyID:   cfg.CompanyID,
		outputDelay: cfg.OutputDelay,
		after: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
}

// SetCaseDetails records applicant financials used by later applications.
func (b *Bridge) SetCaseDetails(details cases.CaseDetails) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.details = details
}

// HandleCall dispatches one function call from the model.
func (b *Bridge) HandleCall(name, argumentsJSON, callID string) {
	var outcome string
	switch name {
	case FuncSourceMortgageProducts:
		outcome = b.sourceMortgageProducts(argumentsJSON, callID)
	case FuncSourceCriteriaProducts:
		outcome = b.sourceCriteriaProducts(argumentsJSON, callID)
	case FuncApplyMortgageProduct:
		outcome = b.applyMortgageProduct(argumentsJSON, callID)
	case FuncMortgageSourcingNavigation:
		outcome = b.mortgageSourcingNavigation(argumentsJSON, callID)
	case FuncFactFindNavigation:
		outcome = b.factFindNavigation(argumentsJSON, callID)
	default:
		b.SubmitOutput(callID, fmt.Sprintf("Error: Function %s not found", name))
		outcome = "unknown"
	}
	if b.metrics != nil {
		b.metrics.FunctionCalls.WithLabelValues(name, outcome).Inc()
	}
}

// SubmitOutput sends exactly two frames: the function result, then after a
// short delay a response request carrying the current mode's modalities. The
// delay lets the remote session register the output before generating.
func (b *Bridge) SubmitOutput(callID, output string) {
	if err := b.session.SendSideChannel(protocol.NewFunctionOutputItem(callID, output)); err != nil {
		log.Printf("tools: send function output: %v", err)
		return
	}
	modalities := b.session.ResponseModalities()
	b.after(b.outputDelay, func() {
		if err := b.session.SendSideChannel(protocol.NewResponseCreate(modalities)); err != nil {
			log.Printf("tools: request continuation: %v", err)
		}
	})
}

type mortgageSearchArgs struct {
	LoanAmount              float64 `json:"loanAmount"`
	PropertyValuationAmount float64 `json:"propertyValuationAmount"`
	MortgageType            string  `json:"mortgageType"`
	CaseTypeID              int     `json:"caseTypeId"`
	CaseTypeName            string  `json:"caseTypeName"`
	ProductCategoryID       int     `json:"productCategoryId"`
	MortgageTermYear        int     `json:"mortgageTermYear"`
	MortgageTermMonth       int     `json:"mortgageTermMonth"`
	PaymentMethod           string  `json:"paymentMethod"`
	InitialRatePeriodMonths int     `json:"initialRatePeriodMonths"`
}

func (b *Bridge) sourceMortgageProducts(argumentsJSON, callID string) string {
	var args mortgageSearchArgs
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		b.SubmitOutput(callID, fmt.Sprintf("Error processing request: %v", err))
		return "error"
	}

	caseTypeID := args.CaseTypeID
	caseTypeName := args.CaseTypeName
	if caseTypeID == 0 {
		if args.MortgageType != "" {
			caseTypeID = MortgageTypeID(args.MortgageType)
			caseTypeName = args.MortgageType
		} else {
			caseTypeID = 1
		}
	}
	if caseTypeName == "" {
		caseTypeName = CaseTypeName(caseTypeID)
	}
	termYear := args.MortgageTermYear
	if termYear == 0 {
		termYear = 25
	}
	paymentMethod := args.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = "Repayment"
	}
	initialPeriod := args.InitialRatePeriodMonths
	if initialPeriod == 0 {
		initialPeriod = 24
	}

	ltv := "0"
	if args.PropertyValuationAmount > 0 {
		ltv = strconv.FormatFloat(args.LoanAmount/args.PropertyValuationAmount*100, 'f', 2, 64)
	}
	ltvValue, _ := strconv.ParseFloat(ltv, 64)

	err := b.notifier.Notify(bridge.EventMortgageSearch, map[string]any{
		"ProductTypeId":                     caseTypeID,
		"ProductCategoryId":                 args.ProductCategoryID,
		"LoanAmount":                        args.LoanAmount,
		"PurchasePrice":                     args.PropertyValuationAmount,
		"PaymentMethod":                     paymentMethod,
		"LoanTermYear":                      termYear,
		"LoanTermMonth":                     args.MortgageTermMonth,
		"InitialRatePeriodMonths":           initialPeriod,
		"LoanToValue":                       ltvValue,
		"SearchProductWithoutClientDetails": true,
		"UserId":                            b.userID,
		"OrderBy":                           "Rate",
	})
	if err != nil {
		log.Printf("tools: mortgage search notify: %v", err)
		b.SubmitOutput(callID, "Sorry, I encountered an error while searching. Please try again.")
		return "error"
	}

	b.mu.Lock()
	b.search = cases.SearchContext{
		PropertyValuationAmount: args.PropertyValuationAmount,
		LoanAmount:              args.LoanAmount,
		MortgageType:            caseTypeName,
		TotalTermMonth:          termYear*12 + args.MortgageTermMonth,
		PaymentMethod:           paymentMethod,
		InitialRatePeriodMonths: initialPeriod,
	}
	b.mu.Unlock()

	categoryText := ""
	if args.ProductCategoryID > 0 {
		categoryText = "\n- Category: " + CategoryName(args.ProductCategoryID)
	}
	output := fmt.Sprintf(`Excellent! I've initiated your mortgage search with these criteria:
- Case Type: %s%s
- Loan Amount: £%s
- Property Value: £%s
- LTV: %s%%
- Mortgage Term: %d years %d months
- Payment Method: %s

You're being redirected to the product sourcing page where you'll see all available mortgage products matching your criteria. The results are loading now!`,
		caseTypeName, categoryText,
		formatAmount(args.LoanAmount), formatAmount(args.PropertyValuationAmount),
		ltv, termYear, args.MortgageTermMonth, paymentMethod)

	b.SubmitOutput(callID, output)
	if b.session.InVoiceMode() {
		if err := b.session.StopRecording(); err != nil {
			log.Printf("tools: stop recording after search: %v", err)
		}
	}
	return "ok"
}

type criteriaSearchArgs struct {
	CriteriaTags []string `json:"criteriaTags"`
	CriteriaName string   `json:"criteriaName"`
	CriteriaText string   `json:"criteriaText"`
	MortgageType string   `json:"mortgageType"`
	UserID       int      `json:"userId"`
}

func (b *Bridge) sourceCriteriaProducts(argumentsJSON, callID string) string {
	var args criteriaSearchArgs
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		b.SubmitOutput(callID, fmt.Sprintf("Error processing request: %v", err))
		return "error"
	}

	mortgageType := args.MortgageType
	if mortgageType == "" {
		mortgageType = "All Cases"
	}
	userID := args.UserID
	if userID == 0 {
		userID = b.userID
	}
	tags := args.CriteriaTags
	if tags == nil {
		tags = []string{}
	}

	err := b.notifier.Notify(bridge.EventCriteriaSearch, map[string]any{
		"CriteriaTags": tags,
		"CriteriaName": args.CriteriaName,
		"CriteriaText": args.CriteriaText,
		"MortgageType": mortgageType,
		"UserId":       userID,
	})
	if err != nil {
		log.Printf("tools: criteria search notify: %v", err)
		b.SubmitOutput(callID, "Sorry, I encountered an error while searching criteria. Please try again.")
		return "error"
	}

	tagsCount := len(tags)
	searchDesc := "tags"
	if tagsCount == 0 {
		tagsCount = 1
		searchDesc = "criteria"
	}
	output := fmt.Sprintf("Great! I've initiated your criteria search for %d %s under %s.\n\nYou're being redirected to the criteria hub where you'll see matching results. The search is loading now!",
		tagsCount, searchDesc, mortgageType)

	b.SubmitOutput(callID, output)
	if b.session.InVoiceMode() {
		if err := b.session.StopRecording(); err != nil {
			log.Printf("tools: stop recording after criteria search: %v", err)
		}
	}
	return "ok"
}

type applyArgs struct {
	Product cases.ProductSelection `json:"product"`
}

func (b *Bridge) applyMortgageProduct(argumentsJSON, callID string) string {
	var args applyArgs
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		b.SubmitOutput(callID, fmt.Sprintf("Error processing request: %v", err))
		return "error"
	}

	b.mu.Lock()
	search := b.search
	details := b.details
	b.mu.Unlock()

	if _, err := b.cases.SubmitApplication(b.userID, b.companyID, args.Product, search, details); err != nil {
		log.Printf("tools: submit application: %v", err)
		b.SubmitOutput(callID, "Sorry, I encountered an error while submitting your application. Please try again.")
		return "error"
	}

	b.SubmitOutput(callID, "I have sent your mortgage application to our system. Please provide further information along with the necessary documents. A member of our support team will contact you soon after you submit the required information and documents for fact-finding.")
	return "ok"
}

type navigationArgs struct {
	Navigate bool `json:"navigate"`
}

func (b *Bridge) mortgageSourcingNavigation(argumentsJSON, callID string) string {
	var args navigationArgs
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		b.SubmitOutput(callID, fmt.Sprintf("Error processing request: %v", err))
		return "error"
	}
	if !args.Navigate {
		return "ok"
	}

	b.mu.Lock()
	search := b.search
	b.mu.Unlock()

	err := b.notifier.Notify(bridge.EventNavigateToSourcing, map[string]any{
		"mortgageParams": map[string]any{
			"propertyValuationAmount": search.PropertyValuationAmount,
			"loanAmount":              search.LoanAmount,
			"mortgageType":            search.MortgageType,
			"totalTermMonth":          search.TotalTermMonth,
			"paymentMethod":           search.PaymentMethod,
			"initialRatePeriodMonths": search.InitialRatePeriodMonths,
		},
	})
	if err != nil {
		log.Printf("tools: sourcing navigation notify: %v", err)
		return "error"
	}

	b.SubmitOutput(callID, "Navigating to mortgage products list...")
	return "ok"
}

func (b *Bridge) factFindNavigation(argumentsJSON, callID string) string {
	var args navigationArgs
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		b.SubmitOutput(callID, fmt.Sprintf("Error processing request: %v", err))
		return "error"
	}
	if !args.Navigate {
		return "ok"
	}

	err := b.notifier.Notify(bridge.EventNavigateToFactFind, map[string]any{
		"userCompanyId": b.companyID,
		"userId":        b.userID,
	})
	if err != nil {
		log.Printf("tools: fact-find navigation notify: %v", err)
		return "error"
	}

	b.SubmitOutput(callID, "Navigating to fact-find page...")
	return "ok"
}

// formatAmount renders a pound amount with thousands separators, e.g.
// 200000 -> "200,000".
func formatAmount(v float64) string {
	whole := int64(v)
	s := strconv.FormatInt(whole, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	if frac := v - float64(whole); frac >= 0.005 {
		out += strconv.FormatFloat(frac, 'f', 2, 64)[1:]
	}
	return out
}

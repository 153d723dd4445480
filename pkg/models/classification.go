package models

// Category is the closed set of email categories.
type Category string

const (
	CategorySalesInquiry    Category = "sales_inquiry"
	CategoryCustomerSupport Category = "customer_support"
	CategorySupplier        Category = "supplier"
	CategoryFinancial       Category = "financial"
	CategoryProduction      Category = "production"
	CategoryPartnership     Category = "partnership"
	CategoryInternal        Category = "internal"
	CategoryOther           Category = "other"
)

var Categories = []Category{
	CategorySalesInquiry, CategoryCustomerSupport, CategorySupplier, CategoryFinancial,
	CategoryProduction, CategoryPartnership, CategoryInternal, CategoryOther,
}

func (c Category) Valid() bool { return contains(Categories, c) }

// Priority is ordered by severity.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// PrioritySeverity lists priorities from most to least severe.
var PrioritySeverity = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) Valid() bool { return contains(PrioritySeverity, p) }

// Urgency is ordered by immediacy.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyToday     Urgency = "today"
	UrgencyThisWeek  Urgency = "this_week"
	UrgencyNoRush    Urgency = "no_rush"
)

// UrgencyImmediacy lists urgencies from most to least immediate.
var UrgencyImmediacy = []Urgency{UrgencyImmediate, UrgencyToday, UrgencyThisWeek, UrgencyNoRush}

func (u Urgency) Valid() bool { return contains(UrgencyImmediacy, u) }

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
	SentimentMixed    Sentiment = "mixed"
)

var Sentiments = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative, SentimentMixed}

func (s Sentiment) Valid() bool { return contains(Sentiments, s) }

// ExtractedNumber is a numeric mention found in the email, e.g. a price or a deposit.
type ExtractedNumber struct {
	Value      float64 `json:"value"`
	Currency   string  `json:"currency,omitempty"`
	Context    string  `json:"context"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// ExtractedDate is a date mention; Date is ISO yyyy-mm-dd.
type ExtractedDate struct {
	Date    string `json:"date"`
	Context string `json:"context"`
	Type    string `json:"type"`
}

// Entity is a named person, company, boat model or place mentioned in the email.
type Entity struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Context string `json:"context"`
}

// ClassificationRequest is the immutable input to one classification.
type ClassificationRequest struct {
	Sender            string     `json:"sender"`
	Subject           string     `json:"subject"`
	Body              string     `json:"body"`
	PreferredProvider ProviderID `json:"provider,omitempty"`
}

// ClassificationResult is the structured judgment derived from one email.
// Provider is empty for the synthesized default and ProviderConsensus for a
// merged result.
type ClassificationResult struct {
	Category         Category          `json:"category"`
	Priority         Priority          `json:"priority"`
	Urgency          Urgency           `json:"urgency"`
	Summary          string            `json:"summary"`
	ExtractedNumbers []ExtractedNumber `json:"extracted_numbers"`
	ExtractedDates   []ExtractedDate   `json:"extracted_dates"`
	SuggestedActions []string          `json:"suggested_actions"`
	Entities         []Entity          `json:"entities"`
	Sentiment        Sentiment         `json:"sentiment"`
	RequiresResponse bool              `json:"requires_response"`
	ConfidenceScore  float64           `json:"confidence_score"`
	Provider         ProviderID        `json:"provider"`
}

// ConsensusResult carries the merged classification and every individual
// provider result it was built from, so callers can inspect disagreement.
type ConsensusResult struct {
	Merged     ClassificationResult   `json:"merged"`
	Individual []ClassificationResult `json:"individual"`
}

// EmailContext is what the question-answering prompt sees about an email.
type EmailContext struct {
	Sender         string                `json:"sender"`
	Subject        string                `json:"subject"`
	Body           string                `json:"body"`
	Classification *ClassificationResult `json:"classification,omitempty"`
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

package contracts

import "time"

// AnalysisID identifier type
type AnalysisID string

// RiskLevel enum
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
	RiskInfo   RiskLevel = "info"
)

var riskLabels = map[RiskLevel]string{
	RiskHigh:   "High Risk",
	RiskMedium: "Medium Risk",
	RiskLow:    "Low Risk",
	RiskInfo:   "Info",
}

// Valid reports whether r is one of the four clause-level risk values.
func (r RiskLevel) Valid() bool {
	_, ok := riskLabels[r]
	return ok
}

// ValidOverall reports whether r may be used as an aggregate risk.
// The aggregate level has no info value.
func (r RiskLevel) ValidOverall() bool {
	return r == RiskHigh || r == RiskMedium || r == RiskLow
}

func (r RiskLevel) Label() string { return riskLabels[r] }

// ClauseCategory enum
type ClauseCategory string

const (
	CategoryPayment         ClauseCategory = "payment"
	CategoryScope           ClauseCategory = "scope"
	CategoryTermination     ClauseCategory = "termination"
	CategoryLiability       ClauseCategory = "liability"
	CategoryIP              ClauseCategory = "ip"
	CategoryConfidentiality ClauseCategory = "confidentiality"
	CategoryNonCompete      ClauseCategory = "non_compete"
	CategoryIndemnification ClauseCategory = "indemnification"
	CategoryDispute         ClauseCategory = "dispute"
	CategoryTimeline        ClauseCategory = "timeline"
	CategoryOther           ClauseCategory = "other"
)

var categoryLabels = map[ClauseCategory]string{
	CategoryPayment:         "Payment Terms",
	CategoryScope:           "Scope of Work",
	CategoryTermination:     "Termination",
	CategoryLiability:       "Liability",
	CategoryIP:              "Intellectual Property",
	CategoryConfidentiality: "Confidentiality / NDA",
	CategoryNonCompete:      "Non-Compete",
	CategoryIndemnification: "Indemnification",
	CategoryDispute:         "Dispute Resolution",
	CategoryTimeline:        "Timeline & Deadlines",
	CategoryOther:           "Other",
}

func (c ClauseCategory) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

func (c ClauseCategory) Label() string { return categoryLabels[c] }

// InputMethod enum
type InputMethod string

const (
	InputCamera InputMethod = "camera"
	InputFile   InputMethod = "file"
	InputPaste  InputMethod = "paste"
)

func (m InputMethod) Valid() bool {
	return m == InputCamera || m == InputFile || m == InputPaste
}

// ContractClause is one analyzed clause. Its ID is namespaced under the
// parent analysis ID.
type ContractClause struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	OriginalText    string         `json:"originalText"`
	PlainEnglish    string         `json:"plainEnglish"`
	RiskLevel       RiskLevel      `json:"riskLevel"`
	RiskExplanation string         `json:"riskExplanation"`
	NegotiationTip  *string        `json:"negotiationTip,omitempty"`
	Category        ClauseCategory `json:"category"`
}

// Aggregate Root: ContractAnalysis
type ContractAnalysis struct {
	ID                 AnalysisID       `json:"id"`
	Title              string           `json:"title"`
	ContractType       string           `json:"contractType"`
	OverallRisk        RiskLevel        `json:"overallRisk"`
	OverallSummary     string           `json:"overallSummary"`
	Clauses            []ContractClause `json:"clauses"`
	RedFlags           []string         `json:"redFlags"`
	MissingClauses     []string         `json:"missingClauses"`
	NegotiationSummary string           `json:"negotiationSummary"`
	CreatedAt          time.Time        `json:"createdAt"`
	RawText            string           `json:"rawText"`
	InputMethod        InputMethod      `json:"inputMethod"`
	FileName           *string          `json:"fileName,omitempty"`
}

// StoredContract is the lightweight history projection of an analysis.
// Counts are captured when the entry is created and never recomputed.
type StoredContract struct {
	ID           AnalysisID `json:"id"`
	Title        string     `json:"title"`
	ContractType string     `json:"contractType"`
	OverallRisk  RiskLevel  `json:"overallRisk"`
	ClauseCount  int        `json:"clauseCount"`
	RedFlagCount int        `json:"redFlagCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	IsFavorite   bool       `json:"isFavorite"`
}

// Summarize projects a into a fresh, non-favorite history entry.
func Summarize(a *ContractAnalysis) StoredContract {
	return StoredContract{
		ID:           a.ID,
		Title:        a.Title,
		ContractType: a.ContractType,
		OverallRisk:  a.OverallRisk,
		ClauseCount:  len(a.Clauses),
		RedFlagCount: len(a.RedFlags),
		CreatedAt:    a.CreatedAt,
	}
}

// HistorySnapshot is the persisted form of the history store.
type HistorySnapshot struct {
	Analyses []ContractAnalysis `json:"analyses"`
	History  []StoredContract   `json:"history"`
}

// HistoryFilter selects history entries for listing.
type HistoryFilter string

const (
	FilterAll       HistoryFilter = "all"
	FilterFavorites HistoryFilter = "favorites"
	FilterHigh      HistoryFilter = "high"
	FilterMedium    HistoryFilter = "medium"
	FilterLow       HistoryFilter = "low"
)

func (f HistoryFilter) Valid() bool {
	switch f {
	case FilterAll, FilterFavorites, FilterHigh, FilterMedium, FilterLow:
		return true
	}
	return false
}

// Match reports whether entry passes the filter. Unknown filters match everything.
func (f HistoryFilter) Match(entry StoredContract) bool {
	switch f {
	case FilterFavorites:
		return entry.IsFavorite
	case FilterHigh, FilterMedium, FilterLow:
		return entry.OverallRisk == RiskLevel(f)
	default:
		return true
	}
}

package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/contract-shield/internal/application"
	domain "github.com/bryanwahyu/contract-shield/internal/domain/contracts"
)

const (
	defaultTitle          = "Untitled Contract"
	defaultContractType   = "Unknown"
	defaultOverallSummary = "Analysis complete."

	// fallback for an aggregate risk that is missing, invalid or "info"
	defaultOverallRisk = domain.RiskMedium
)

var (
	fenceOpen  = regexp.MustCompile("(?i)^```(?:json)?\\s*\\n?")
	fenceClose = regexp.MustCompile("\\n?```\\s*$")

	errNotObject = errors.New("response is not a JSON object")
)

// NormalizeRequest carries the request-side fields that the model does not
// supply.
type NormalizeRequest struct {
	RawText     string
	InputMethod domain.InputMethod
	FileName    string
}

// Normalizer turns raw model output into a fully-typed ContractAnalysis.
// Downstream code can rely on every enum field holding a valid value.
type Normalizer struct {
	Clock application.Clock
	NewID func(now time.Time) domain.AnalysisID
}

// NewNormalizer returns a Normalizer with the default id generator.
func NewNormalizer(clock application.Clock) *Normalizer {
	return &Normalizer{Clock: clock, NewID: GenerateID}
}

// GenerateID returns a time-based id with a random suffix.
func GenerateID(now time.Time) domain.AnalysisID {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return domain.AnalysisID(fmt.Sprintf("cs_%d_%s", now.UnixMilli(), suffix))
}

func (n *Normalizer) newID(now time.Time) domain.AnalysisID {
	if n.NewID == nil {
		return GenerateID(now)
	}
	return n.NewID(now)
}

// ClauseID derives the id of the clause at index within analysis id.
func ClauseID(id domain.AnalysisID, index int) string {
	return fmt.Sprintf("%s_clause_%d", id, index)
}

// StripCodeFence removes an optional markdown code fence around s.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Normalize parses raw and applies defaults and enum coercion. It fails only
// with *domain.ParseError, and then returns no analysis at all.
func (n *Normalizer) Normalize(raw string, req NormalizeRequest) (*domain.ContractAnalysis, error) {
	body := []byte(StripCodeFence(raw))
	if !bytes.HasPrefix(body, []byte("{")) {
		return nil, &domain.ParseError{Err: errNotObject}
	}

	var parsed rawAnalysis
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.ParseError{Err: err}
	}

	now := n.Clock.Now()
	id := n.newID(now)

	clauses := make([]domain.ContractClause, 0, len(parsed.Clauses))
	for i, c := range parsed.Clauses {
		clauses = append(clauses, c.normalize(id, i))
	}

	method := req.InputMethod
	if !method.Valid() {
		method = domain.InputPaste
	}

	var fileName *string
	if req.FileName != "" {
		name := req.FileName
		fileName = &name
	}

	title := string(parsed.Title)
	if title == "" {
		title = req.FileName
	}

	return &domain.ContractAnalysis{
		ID:                 id,
		Title:              orDefault(title, defaultTitle),
		ContractType:       orDefault(string(parsed.ContractType), defaultContractType),
		OverallRisk:        CoerceOverallRisk(string(parsed.OverallRisk)),
		OverallSummary:     orDefault(string(parsed.OverallSummary), defaultOverallSummary),
		Clauses:            clauses,
		RedFlags:           nonNil(parsed.RedFlags),
		MissingClauses:     nonNil(parsed.MissingClauses),
		NegotiationSummary: string(parsed.NegotiationSummary),
		CreatedAt:          now,
		RawText:            req.RawText,
		InputMethod:        method,
		FileName:           fileName,
	}, nil
}

// CoerceRiskLevel maps anything but an exact clause risk literal to info.
func CoerceRiskLevel(v string) domain.RiskLevel {
	if r := domain.RiskLevel(v); r.Valid() {
		return r
	}
	return domain.RiskInfo
}

// CoerceOverallRisk maps anything but high, medium or low to medium.
func CoerceOverallRisk(v string) domain.RiskLevel {
	if r := domain.RiskLevel(v); r.ValidOverall() {
		return r
	}
	return defaultOverallRisk
}

// CoerceCategory maps anything but an exact category literal to other.
func CoerceCategory(v string) domain.ClauseCategory {
	if c := domain.ClauseCategory(v); c.Valid() {
		return c
	}
	return domain.CategoryOther
}

type rawAnalysis struct {
	Title              looseString  `json:"title"`
	ContractType       looseString  `json:"contractType"`
	OverallRisk        looseString  `json:"overallRisk"`
	OverallSummary     looseString  `json:"overallSummary"`
	Clauses            looseClauses `json:"clauses"`
	RedFlags           looseStrings `json:"redFlags"`
	MissingClauses     looseStrings `json:"missingClauses"`
	NegotiationSummary looseString  `json:"negotiationSummary"`
}

type rawClause struct {
	Title           looseString `json:"title"`
	OriginalText    looseString `json:"originalText"`
	PlainEnglish    looseString `json:"plainEnglish"`
	RiskLevel       looseString `json:"riskLevel"`
	RiskExplanation looseString `json:"riskExplanation"`
	NegotiationTip  looseString `json:"negotiationTip"`
	Category        looseString `json:"category"`
}

func (c rawClause) normalize(id domain.AnalysisID, index int) domain.ContractClause {
	var tip *string
	if c.NegotiationTip != "" {
		t := string(c.NegotiationTip)
		tip = &t
	}
	return domain.ContractClause{
		ID:              ClauseID(id, index),
		Title:           orDefault(string(c.Title), fmt.Sprintf("Clause %d", index+1)),
		OriginalText:    string(c.OriginalText),
		PlainEnglish:    string(c.PlainEnglish),
		RiskLevel:       CoerceRiskLevel(string(c.RiskLevel)),
		RiskExplanation: string(c.RiskExplanation),
		NegotiationTip:  tip,
		Category:        CoerceCategory(string(c.Category)),
	}
}

// looseString decodes JSON strings and leaves every other shape empty.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || b[0] != '"' {
		*s = ""
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = looseString(v)
	return nil
}

// looseStrings decodes a JSON array keeping only its string elements. Any
// other shape decodes as empty.
type looseStrings []string

func (s *looseStrings) UnmarshalJSON(b []byte) error {
	*s = nil
	if len(b) == 0 || b[0] != '[' {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if len(item) == 0 || item[0] != '"' {
			continue
		}
		var v string
		if err := json.Unmarshal(item, &v); err != nil {
			return err
		}
		out = append(out, v)
	}
	*s = out
	return nil
}

// looseClauses decodes a JSON array of clause objects. Non-object elements
// become empty clauses so positions, and therefore ids, are preserved.
type looseClauses []rawClause

func (c *looseClauses) UnmarshalJSON(b []byte) error {
	*c = nil
	if len(b) == 0 || b[0] != '[' {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make([]rawClause, len(items))
	for i, item := range items {
		if len(item) == 0 || item[0] != '{' {
			continue
		}
		if err := json.Unmarshal(item, &out[i]); err != nil {
			return err
		}
	}
	*c = out
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func nonNil(s looseStrings) []string {
	if s == nil {
		return []string{}
	}
	return []string(s)
}

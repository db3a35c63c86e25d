package analysis

import (
	"time"

	domain "github.com/bryanwahyu/contract-shield/internal/domain/contracts"
)

const demoRawText = "[Demo contract text]"

type demoClause struct {
	title, original, plain string
	risk                   domain.RiskLevel
	explanation, tip       string
	category               domain.ClauseCategory
}

var demoClauses = []demoClause{
	{
		title:       "Payment Terms: Net 60",
		original:    "Contractor shall submit invoices upon completion of each milestone. Client shall pay within sixty (60) business days of receipt of invoice.",
		plain:       "You have to wait up to 60 business days (about 3 months) after sending your invoice before the client is required to pay you.",
		risk:        domain.RiskHigh,
		explanation: "Net 60 business days is excessively long for freelance work. Industry standard is Net 15 or Net 30 calendar days. This creates cash flow problems.",
		tip:         "Request Net 15 or Net 30 calendar days. Add a late payment fee of 1.5% per month for overdue invoices.",
		category:    domain.CategoryPayment,
	},
	{
		title:       "Intellectual Property Assignment",
		original:    "All work product, including but not limited to code, designs, documentation, and related materials created by Contractor shall be considered work-for-hire and shall be the exclusive property of Client.",
		plain:       "Everything you create for this project belongs entirely to the client, including code, designs, and documentation. You cannot reuse any of it.",
		risk:        domain.RiskMedium,
		explanation: "Total IP transfer is common but overly broad. It could prevent you from reusing generic code patterns or frameworks you developed.",
		tip:         "Add an exception for pre-existing tools, frameworks, and generic code. Request a license-back clause allowing you to reuse non-client-specific components.",
		category:    domain.CategoryIP,
	},
	{
		title:       "Scope of Work",
		original:    "Contractor shall perform web development services as directed by Client, including but not limited to front-end development, back-end development, and testing.",
		plain:       "You will do web development as the client directs, with no specific limits on what that includes.",
		risk:        domain.RiskHigh,
		explanation: "The phrases \"including but not limited to\" and \"as directed by Client\" create unlimited scope. The client could demand any type of work under this contract.",
		tip:         "Replace with a specific deliverables list and add a change order process for work outside the original scope.",
		category:    domain.CategoryScope,
	},
	{
		title:       "Termination Clause",
		original:    "Either party may terminate this Agreement with thirty (30) days written notice. Upon termination, Client shall pay for all completed milestones.",
		plain:       "Either side can end the contract with 30 days notice. You only get paid for milestones already finished.",
		risk:        domain.RiskLow,
		explanation: "This is a fair termination clause. 30-day notice is standard and you are guaranteed payment for completed work.",
		category:    domain.CategoryTermination,
	},
	{
		title:       "Non-Compete Restriction",
		original:    "For a period of twelve (12) months following termination, Contractor shall not provide similar services to any of Client's direct competitors.",
		plain:       "After this contract ends, you cannot work for any of the client's competitors for a full year.",
		risk:        domain.RiskHigh,
		explanation: "A 12-month non-compete is extremely restrictive for a freelancer. It could block a significant portion of your potential income.",
		tip:         "Reduce to 3 months maximum, or remove entirely. At minimum, define \"direct competitors\" narrowly.",
		category:    domain.CategoryNonCompete,
	},
	{
		title:       "Confidentiality",
		original:    "Contractor agrees to maintain confidentiality of all Client information for a period of five (5) years following termination of this Agreement.",
		plain:       "You must keep the client's information secret for 5 years after the contract ends.",
		risk:        domain.RiskInfo,
		explanation: "5-year confidentiality is standard and reasonable. This protects both parties.",
		category:    domain.CategoryConfidentiality,
	},
}

// DemoAnalysis returns the fixed sample analysis offered to users without a
// credential. It is built fresh on every call with a new id.
func DemoAnalysis(id domain.AnalysisID, now time.Time) *domain.ContractAnalysis {
	clauses := make([]domain.ContractClause, 0, len(demoClauses))
	for i, c := range demoClauses {
		clause := domain.ContractClause{
			ID:              ClauseID(id, i),
			Title:           c.title,
			OriginalText:    c.original,
			PlainEnglish:    c.plain,
			RiskLevel:       c.risk,
			RiskExplanation: c.explanation,
			Category:        c.category,
		}
		if c.tip != "" {
			tip := c.tip
			clause.NegotiationTip = &tip
		}
		clauses = append(clauses, clause)
	}

	return &domain.ContractAnalysis{
		ID:             id,
		Title:          "Sample Freelance Web Development Agreement",
		ContractType:   "Freelance Service Agreement",
		OverallRisk:    domain.RiskMedium,
		OverallSummary: "This is a standard freelance agreement with some concerning clauses around payment terms and IP ownership. The 60-day payment window and broad IP transfer clause should be negotiated before signing.",
		Clauses:        clauses,
		RedFlags: []string{
			"Net 60 business days payment terms; industry standard is Net 15-30 calendar days",
			"Unlimited scope clause with \"including but not limited to\" language",
			"12-month non-compete restriction is excessive for freelance work",
			"No late payment penalty clause to protect the freelancer",
			"No dispute resolution mechanism specified",
		},
		MissingClauses: []string{
			"Late Payment Fee: should include an automatic penalty for overdue payments",
			"Revision Limits: no cap on revision rounds, risking unlimited rework",
			"Force Majeure: no protection for circumstances beyond either party's control",
			"Dispute Resolution: no mediation or arbitration clause",
			"Kill Fee: no compensation specified if the project is cancelled mid-milestone",
		},
		NegotiationSummary: "Priority changes: (1) reduce payment terms to Net 15-30 calendar days with late fees, (2) add a specific deliverables list with a change order process, (3) remove or drastically reduce the non-compete, (4) add a license-back clause for pre-existing code and tools.",
		CreatedAt:          now,
		RawText:            demoRawText,
		InputMethod:        domain.InputPaste,
	}
}

package responder

import (
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

const (
	fallbackCustomer = "Valued Customer"
	caseIDPrefix     = "CASE-"
	caseIDLength     = 9
	caseIDAlphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	maxQuickReplies  = 3
)

// Draft is a generated reply ready for a human to edit.
type Draft struct {
	RecordID  string           `json:"recordId"`
	CaseID    string           `json:"caseId"`
	Agent     string           `json:"agent"`
	IssueType record.IssueType `json:"issueType"`
	Priority  record.Priority  `json:"priority"`
	Body      string           `json:"body"`
}

// Generator fills reply templates for records. The random source is shared
// and guarded, so a Generator is safe for concurrent use.
type Generator struct {
	table  *Table
	agents []string

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Generator)

// WithRand sets the source used for agent and case id selection.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rng = r }
}

// WithAgents replaces the table's agent pool. An empty list is ignored.
func WithAgents(names []string) Option {
	return func(g *Generator) {
		var pool []string
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				pool = append(pool, n)
			}
		}
		if len(pool) > 0 {
			g.agents = pool
		}
	}
}

// WithTemplates replaces the built-in table. The table is validated by New.
func WithTemplates(t *Table) Option {
	return func(g *Generator) { g.table = t }
}

func New(opts ...Option) (*Generator, error) {
	g := &Generator{}
	for _, opt := range opts {
		opt(g)
	}
	if g.table == nil {
		t, err := DefaultTable()
		if err != nil {
			return nil, err
		}
		g.table = t
	} else if err := g.table.Validate(); err != nil {
		return nil, err
	}
	if len(g.agents) == 0 {
		g.agents = g.table.Agents
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return g, nil
}

// Generate picks the template for the record's issue type and priority and
// fills it in. Unknown issue types use General Support; unknown priorities
// use the low template.
func (g *Generator) Generate(r record.Record) Draft {
	issue, body := g.template(r.ExtractedInfo.IssueType, r.Priority)

	g.mu.Lock()
	agent := g.agents[g.rng.IntN(len(g.agents))]
	caseID := g.caseIDLocked()
	g.mu.Unlock()

	customer := strings.TrimSpace(r.Sender.Name)
	if customer == "" {
		customer = fallbackCustomer
	}

	d := g.table.Defaults
	replacer := strings.NewReplacer(
		"{"+phCustomerName+"}", customer,
		"{"+phCaseID+"}", caseID,
		"{"+phAgentName+"}", agent,
		"{"+phAmount+"}", d.Amount,
		"{"+phCreditAmount+"}", d.CreditAmount,
		"{"+phBillingDetails+"}", d.BillingDetails,
	)

	return Draft{
		RecordID:  r.ID,
		CaseID:    caseID,
		Agent:     agent,
		IssueType: issue,
		Priority:  r.Priority,
		Body:      replacer.Replace(body),
	}
}

func (g *Generator) template(issue record.IssueType, p record.Priority) (record.IssueType, string) {
	byPriority, ok := g.table.Templates[issue]
	if !ok {
		issue = record.IssueGeneralSupport
		byPriority = g.table.Templates[issue]
	}
	if !p.Valid() {
		p = record.PriorityLow
	}
	return issue, byPriority[p]
}

func (g *Generator) caseIDLocked() string {
	var b strings.Builder
	b.Grow(len(caseIDPrefix) + caseIDLength)
	b.WriteString(caseIDPrefix)
	for i := 0; i < caseIDLength; i++ {
		b.WriteByte(caseIDAlphabet[g.rng.IntN(len(caseIDAlphabet))])
	}
	return b.String()
}

// QuickReplies returns at most three short replies: priority lines first,
// then lines for the issue type, then generic closers.
func (g *Generator) QuickReplies(r record.Record) []string {
	q := g.table.QuickReplies

	var lines []string
	lines = append(lines, q.Priority[r.Priority]...)
	for _, ir := range q.Issue {
		if ir.Match != "" && strings.Contains(string(r.ExtractedInfo.IssueType), ir.Match) {
			lines = append(lines, ir.Lines...)
			break
		}
	}
	lines = append(lines, q.Closing...)

	if len(lines) > maxQuickReplies {
		lines = lines[:maxQuickReplies]
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

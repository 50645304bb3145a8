package responder

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Placeholders a template may reference.
const (
	phCustomerName   = "customerName"
	phCaseID         = "caseId"
	phAgentName      = "agentName"
	phAmount         = "amount"
	phCreditAmount   = "creditAmount"
	phBillingDetails = "billingDetails"
)

var knownPlaceholders = map[string]bool{
	phCustomerName:   true,
	phCaseID:         true,
	phAgentName:      true,
	phAmount:         true,
	phCreditAmount:   true,
	phBillingDetails: true,
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z]+)\}`)

var priorities = []record.Priority{record.PriorityHigh, record.PriorityMedium, record.PriorityLow}

// Defaults are the fixed values used for placeholders that are not derived
// from the record.
type Defaults struct {
	Amount         string `yaml:"amount"`
	CreditAmount   string `yaml:"creditAmount"`
	BillingDetails string `yaml:"billingDetails"`
}

// IssueReplies are quick replies offered when the issue type contains Match.
type IssueReplies struct {
	Match string   `yaml:"match"`
	Lines []string `yaml:"lines"`
}

type QuickReplies struct {
	Priority map[record.Priority][]string `yaml:"priority"`
	Issue    []IssueReplies               `yaml:"issue"`
	Closing  []string                     `yaml:"closing"`
}

// Table is the full reply configuration: one template per issue type and
// priority, the agent pool and the quick reply lines.
type Table struct {
	Defaults     Defaults                                        `yaml:"defaults"`
	Agents       []string                                        `yaml:"agents"`
	Templates    map[record.IssueType]map[record.Priority]string `yaml:"templates"`
	QuickReplies QuickReplies                                    `yaml:"quickReplies"`
}

// LoadTemplates decodes and validates a YAML table.
func LoadTemplates(r io.Reader) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var t Table
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// DefaultTable returns the built-in table.
func DefaultTable() (*Table, error) {
	return LoadTemplates(bytes.NewReader(defaultTemplates))
}

// Validate checks that every issue type has a non-blank template for every
// priority, that templates only use known placeholders, and that the agent
// pool and closing replies are not empty.
func (t *Table) Validate() error {
	var errs []error
	for _, issue := range record.IssueTypes {
		byPriority, ok := t.Templates[issue]
		if !ok {
			errs = append(errs, fmt.Errorf("missing templates for %q", issue))
			continue
		}
		for _, p := range priorities {
			body := byPriority[p]
			if strings.TrimSpace(body) == "" {
				errs = append(errs, fmt.Errorf("missing %s template for %q", p, issue))
				continue
			}
			for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
				if !knownPlaceholders[m[1]] {
					errs = append(errs, fmt.Errorf("unknown placeholder {%s} in %s template for %q", m[1], p, issue))
				}
			}
		}
	}
	for issue, byPriority := range t.Templates {
		for p := range byPriority {
			if !p.Valid() {
				errs = append(errs, fmt.Errorf("unknown priority %q for %q", p, issue))
			}
		}
	}
	if len(t.Agents) == 0 {
		errs = append(errs, errors.New("agent pool is empty"))
	}
	if len(t.QuickReplies.Closing) == 0 {
		errs = append(errs, errors.New("no closing quick replies"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("validate templates: %w", err)
	}
	return nil
}

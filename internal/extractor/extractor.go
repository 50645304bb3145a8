package extractor

import (
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)

	// Prefixed ids are returned whole; labelled ids return only the code,
	// which must contain a digit so "account: please" is not an id.
	accountPattern     = regexp.MustCompile(`(?i)\b(ACC-\w+)|\baccount(?:\s+(?:id|number|no\.?))?\s*[:#]\s*([a-z0-9-]*\d[a-z0-9-]*)`)
	transactionPattern = regexp.MustCompile(`(?i)\b(TXN-\w+)|\btransaction(?:\s+(?:id|number|no\.?))?\s*[:#]\s*([a-z0-9-]*\d[a-z0-9-]*)`)
)

type issueRule struct {
	issue    record.IssueType
	keywords []string
}

// Evaluated in order; the first rule with a keyword in the text wins.
var issueRules = []issueRule{
	{record.IssueAuthentication, []string{"login", "log in", "password"}},
	{record.IssueBilling, []string{"billing", "payment"}},
	{record.IssueTechnicalIntegration, []string{"api", "integration"}},
	{record.IssueAccountVerification, []string{"verification"}},
}

// Extractor pulls contact details, identifiers and an issue type out of
// message text. It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	rules []issueRule
}

func New() *Extractor {
	return &Extractor{rules: issueRules}
}

// Extract scans subject and body together. Lists keep first-seen order with
// duplicates removed and stay nil when nothing matched.
func (e *Extractor) Extract(subject, body string) record.ExtractedInfo {
	text := subject + " " + body

	return record.ExtractedInfo{
		EmailAddresses: unique(emailPattern.FindAllString(text, -1)),
		AccountIDs:     identifiers(accountPattern, text),
		TransactionIDs: identifiers(transactionPattern, text),
		PhoneNumbers:   unique(phonePattern.FindAllString(text, -1)),
		IssueType:      e.issueType(strings.ToLower(text)),
	}
}

func (e *Extractor) issueType(text string) record.IssueType {
	for _, r := range e.rules {
		for _, k := range r.keywords {
			if strings.Contains(text, k) {
				return r.issue
			}
		}
	}
	return record.IssueGeneralSupport
}

func identifiers(re *regexp.Regexp, text string) []string {
	var ids []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			ids = append(ids, m[1])
		} else if m[2] != "" {
			ids = append(ids, m[2])
		}
	}
	return unique(ids)
}

func unique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

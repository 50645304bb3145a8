package classifier

import (
	"math"
	"slices"
	"strings"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

// Result is the classification of one message.
type Result struct {
	Priority     record.Priority  `json:"priority"`
	Sentiment    record.Sentiment `json:"sentiment"`
	Category     string           `json:"category"`
	Confidence   float64          `json:"confidence"`
	UrgencyScore float64          `json:"urgencyScore"`
}

// Classifier maps a message's subject and body to a Result.
// Implementations must be safe for concurrent use and must not fail.
type Classifier interface {
	Classify(subject, body string) Result
}

var defaultUrgency = []string{
	"urgent", "asap", "critical", "emergency", "immediate", "quickly", "soon",
	"downtime", "down", "broken", "not working", "blocked", "inaccessible",
}

var defaultNegative = []string{
	"problem", "issue", "error", "bug", "broken", "not working", "failed",
	"unable", "cannot", "can't", "won't", "doesn't", "trouble", "difficulty",
	"frustrated", "disappointed", "angry", "upset", "terrible", "awful",
}

var defaultPositive = []string{
	"thank", "thanks", "great", "excellent", "amazing", "wonderful", "fantastic",
	"perfect", "love", "appreciate", "satisfied", "happy", "pleased", "good",
}

type category struct {
	name     string
	keywords []string
}

// Iteration order decides ties.
var defaultCategories = []category{
	{"Support", []string{"help", "support", "assist", "issue", "problem", "trouble", "error", "bug"}},
	{"Billing", []string{"billing", "payment", "invoice", "charge", "refund", "subscription", "price", "cost"}},
	{"Technical", []string{"technical", "server", "system", "api", "integration", "code", "software"}},
	{"Sales", []string{"sales", "pricing", "quote", "demo", "purchase", "buy", "subscription"}},
	{"Account", []string{"account", "login", "password", "access", "verification", "profile"}},
	{record.CategoryGeneral, []string{"question", "query", "information", "clarification"}},
}

var (
	strongUrgency = []string{"urgent", "critical", "emergency"}
	timeSensitive = []string{"immediately", "asap", "right away"}

	highSubject = []string{"urgent", "critical", "emergency"}
	highBody    = []string{"down", "not working", "completely inaccessible"}
	midSubject  = []string{"help", "support"}
	midBody     = []string{"issue", "problem"}
)

const (
	highThreshold   = 0.7
	mediumThreshold = 0.3
	baseConfidence  = 0.6
	longTextTokens  = 20
)

// KeywordClassifier scores messages by substring keyword matching.
type KeywordClassifier struct {
	urgency    []string
	negative   []string
	positive   []string
	categories []category
	vocabulary []string
}

// Option configures a KeywordClassifier.
type Option func(*KeywordClassifier)

// WithExtraUrgencyKeywords appends keywords to the built-in urgency set.
// Blank and duplicate entries are ignored; matching is case-insensitive.
func WithExtraUrgencyKeywords(keywords ...string) Option {
	return func(c *KeywordClassifier) {
		for _, k := range keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k == "" || slices.Contains(c.urgency, k) {
				continue
			}
			c.urgency = append(c.urgency, k)
		}
	}
}

func NewKeywordClassifier(opts ...Option) *KeywordClassifier {
	c := &KeywordClassifier{
		urgency:    append([]string(nil), defaultUrgency...),
		negative:   defaultNegative,
		positive:   defaultPositive,
		categories: defaultCategories,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.vocabulary = c.buildVocabulary()
	return c
}

func (c *KeywordClassifier) buildVocabulary() []string {
	var all []string
	all = append(all, c.urgency...)
	all = append(all, c.positive...)
	all = append(all, c.negative...)
	for _, cat := range c.categories {
		all = append(all, cat.keywords...)
	}
	seen := make(map[string]struct{}, len(all))
	vocab := make([]string, 0, len(all))
	for _, k := range all {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		vocab = append(vocab, k)
	}
	return vocab
}

func (c *KeywordClassifier) Classify(subject, body string) Result {
	text := strings.ToLower(subject + " " + body)
	tokens := strings.Fields(text)

	urgency := c.urgencyScore(text, tokens)
	return Result{
		Priority:     priority(urgency, strings.ToLower(subject), strings.ToLower(body)),
		Sentiment:    c.sentiment(tokens),
		Category:     c.category(text),
		Confidence:   c.confidence(text, tokens),
		UrgencyScore: urgency,
	}
}

func (c *KeywordClassifier) urgencyScore(text string, tokens []string) float64 {
	var score float64
	for _, tok := range tokens {
		if containsAny(tok, c.urgency) {
			score++
		}
	}
	if containsAny(text, strongUrgency) {
		score += 2
	}
	if containsAny(text, timeSensitive) {
		score += 1.5
	}
	return math.Min(score/3, 1)
}

func priority(urgency float64, subject, body string) record.Priority {
	if urgency > highThreshold || containsAny(subject, highSubject) || containsAny(body, highBody) {
		return record.PriorityHigh
	}
	if urgency > mediumThreshold || containsAny(subject, midSubject) || containsAny(body, midBody) {
		return record.PriorityMedium
	}
	return record.PriorityLow
}

func (c *KeywordClassifier) sentiment(tokens []string) record.Sentiment {
	var pos, neg int
	for _, tok := range tokens {
		if containsAny(tok, c.positive) {
			pos++
		}
		if containsAny(tok, c.negative) {
			neg++
		}
	}
	switch {
	case pos > neg:
		return record.SentimentPositive
	case neg > pos:
		return record.SentimentNegative
	default:
		return record.SentimentNeutral
	}
}

func (c *KeywordClassifier) category(text string) string {
	best, bestScore := record.CategoryGeneral, 0
	for _, cat := range c.categories {
		score := 0
		for _, k := range cat.keywords {
			if strings.Contains(text, k) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = cat.name, score
		}
	}
	return best
}

func (c *KeywordClassifier) confidence(text string, tokens []string) float64 {
	conf := baseConfidence
	if len(tokens) == 0 {
		return conf
	}
	matches := 0
	for _, k := range c.vocabulary {
		if strings.Contains(text, k) {
			matches++
		}
	}
	conf += float64(matches) / float64(len(tokens)) * 0.3
	if len(tokens) > longTextTokens {
		conf += 0.1
	}
	return math.Min(conf, 1)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

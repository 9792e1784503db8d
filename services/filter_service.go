package services

import (
	"regexp"
	"sort"
	"strings"
)

type ViolationType string

const (
	ViolationPhoneNumber          ViolationType = "phone_number"
	ViolationEmail                ViolationType = "email"
	ViolationMessagingApp         ViolationType = "messaging_app"
	ViolationPaymentCircumvention ViolationType = "payment_circumvention"
	ViolationSocialMedia          ViolationType = "social_media"
	ViolationSuspiciousPattern    ViolationType = "suspicious_pattern"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityWeights = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 5,
}

// violationSeverities is the static type to severity table. The cross-message
// suspicious_pattern escalation overrides the table entry with high.
var violationSeverities = map[ViolationType]Severity{
	ViolationPhoneNumber:          SeverityHigh,
	ViolationEmail:                SeverityHigh,
	ViolationMessagingApp:         SeverityHigh,
	ViolationPaymentCircumvention: SeverityCritical,
	ViolationSocialMedia:          SeverityMedium,
	ViolationSuspiciousPattern:    SeverityMedium,
}

type FilterAction string

const (
	ActionAllow   FilterAction = "allow"
	ActionEducate FilterAction = "educate"
	ActionWarn    FilterAction = "warn"
	ActionBlock   FilterAction = "block"
)

const (
	warnThreshold  = 3
	blockThreshold = 5
	// historyDepth is how many of the sender's prior messages are scanned
	// for setup phrases
	historyDepth = 5
	// minDigitGroups is how many bare 3-4 digit groups it takes to flag a
	// split-number evasion once a setup phrase was seen
	minDigitGroups = 2
)

// Violation is a single pattern match flagged by the content filter
type Violation struct {
	Type        ViolationType `json:"type"`
	Severity    Severity      `json:"severity"`
	Match       string        `json:"match"`
	Description string        `json:"description"`
	Reason      string        `json:"reason"`
	Start       int           `json:"-"`
	End         int           `json:"-"`
}

type FilterResult struct {
	Violations      []Violation  `json:"violations"`
	Action          FilterAction `json:"action"`
	FilteredContent string       `json:"filtered_content"`
	SeverityScore   int          `json:"severity_score"`
}

var placeholders = map[ViolationType]string{
	ViolationPhoneNumber:          "[PHONE REMOVED]",
	ViolationEmail:                "[EMAIL REMOVED]",
	ViolationMessagingApp:         "[APP NAME REMOVED]",
	ViolationPaymentCircumvention: "[PAYMENT TERM REMOVED]",
	ViolationSocialMedia:          "[SOCIAL MEDIA REMOVED]",
	ViolationSuspiciousPattern:    "[NUMBER REMOVED]",
}

// filterPattern matches against the original text; case-insensitive
// families carry (?i) so match indices always refer to the string being
// sliced and redacted.
type filterPattern struct {
	re          *regexp.Regexp
	description string
	reason      string
}

// ContentFilterService classifies message text for attempts to move
// communication or payment off the platform. It is stateless and safe for
// concurrent use; construct one per process and inject it.
type ContentFilterService interface {
	Analyze(content string, history []string) FilterResult
}

type contentFilterService struct {
	phonePatterns     []filterPattern
	emailPatterns     []filterPattern
	messagingPatterns []filterPattern
	paymentPatterns   []filterPattern
	socialPatterns    []filterPattern
	setupPhrases      []string
	digitGroupRe      *regexp.Regexp
}

// NewContentFilterService compiles the pattern tables once
func NewContentFilterService() ContentFilterService {
	return &contentFilterService{
		phonePatterns: []filterPattern{
			{
				re:          regexp.MustCompile(`(\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`),
				description: "north american phone format",
				reason:      "Sharing phone numbers moves conversations off the platform",
			},
			{
				re:          regexp.MustCompile(`\b\d{3}[\s.\-]\d{3}[\s.\-]\d{4}\b`),
				description: "separated digit groups",
				reason:      "Sharing phone numbers moves conversations off the platform",
			},
			{
				re:          regexp.MustCompile(`\b\d([\s.\-]\d){9,12}\b`),
				description: "spaced out digit sequence",
				reason:      "Spacing out digits does not hide a phone number",
			},
			{
				re:          regexp.MustCompile(`\+\d{10,15}\b`),
				description: "international phone format",
				reason:      "Sharing phone numbers moves conversations off the platform",
			},
		},
		emailPatterns: []filterPattern{
			{
				re:          regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
				description: "email address",
				reason:      "Sharing email addresses moves conversations off the platform",
			},
			{
				re:          regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+\s*(\[at\]|\(at\)|\bat\b)\s*[a-z0-9\-]+\s*(\[dot\]|\(dot\)|\bdot\b)\s*[a-z]{2,}\b`),
				description: "obfuscated email address",
				reason:      "Spelling out an email address does not hide it",
			},
		},
		messagingPatterns: []filterPattern{
			{
				re:          regexp.MustCompile(`(?i)\b(whats\s?app|telegram|signal|we\s?chat|viber|kik|snapchat|group\s?me|discord|facetime|imessage)\b`),
				description: "external messaging app",
				reason:      "Keep conversations on the platform for your safety",
			},
		},
		paymentPatterns: []filterPattern{
			{
				re:          regexp.MustCompile(`(?i)\b(pay\s+(me\s+)?outside|off\s+the\s+app|avoid\s+(the\s+)?fees?|skip\s+(the\s+)?fees?|cash\s+only|pay\s+in\s+cash|wire\s+transfer|western\s+union|money\s+order|venmo|zelle|cash\s?app|paypal|direct\s+deposit|bank\s+transfer)\b`),
				description: "payment circumvention phrase",
				reason:      "Off-platform payments are not protected and violate the terms of service",
			},
		},
		socialPatterns: []filterPattern{
			{
				re:          regexp.MustCompile(`(?i)\b(instagram|insta\b|facebook|fb\.com|tiktok|twitter|linkedin)\b`),
				description: "social media reference",
				reason:      "Social media handles move conversations off the platform",
			},
			{
				re:          regexp.MustCompile(`(?i)(^|\s)@[a-z0-9_.]{3,}\b`),
				description: "social media handle",
				reason:      "Social media handles move conversations off the platform",
			},
			{
				re:          regexp.MustCompile(`(?i)\bfind\s+me\s+on\b`),
				description: "off platform invitation",
				reason:      "Social media handles move conversations off the platform",
			},
		},
		setupPhrases: []string{
			"my number is",
			"my number",
			"call me",
			"text me",
			"contact me",
			"reach me",
			"digits are",
		},
		digitGroupRe: regexp.MustCompile(`\b\d{3,4}\b`),
	}
}

// Analyze classifies content and recommends an action. history, when given,
// holds the sender's prior messages in the conversation, newest first; only
// the most recent five are considered. Pure computation, no side effects.
func (f *contentFilterService) Analyze(content string, history []string) FilterResult {
	if strings.TrimSpace(content) == "" {
		return FilterResult{Action: ActionAllow, FilteredContent: content}
	}

	var violations []Violation
	violations = append(violations, f.runPatterns(ViolationPhoneNumber, f.phonePatterns, content)...)
	violations = append(violations, f.runPatterns(ViolationMessagingApp, f.messagingPatterns, content)...)
	violations = append(violations, f.runPatterns(ViolationEmail, f.emailPatterns, content)...)
	violations = append(violations, f.runPatterns(ViolationPaymentCircumvention, f.paymentPatterns, content)...)
	violations = append(violations, f.runPatterns(ViolationSocialMedia, f.socialPatterns, content)...)
	violations = append(violations, f.correlateHistory(content, history)...)

	violations = dedupe(violations)

	score := 0
	hasCritical := false
	for _, v := range violations {
		score += severityWeights[v.Severity]
		if v.Severity == SeverityCritical {
			hasCritical = true
		}
	}

	action := ActionAllow
	switch {
	case hasCritical:
		action = ActionBlock
	case score >= blockThreshold:
		action = ActionBlock
	case score >= warnThreshold:
		action = ActionWarn
	case score > 0:
		action = ActionEducate
	}

	filtered := content
	if action != ActionAllow {
		filtered = redact(content, violations)
	}

	return FilterResult{
		Violations:      violations,
		Action:          action,
		FilteredContent: filtered,
		SeverityScore:   score,
	}
}

func (f *contentFilterService) runPatterns(vtype ViolationType, patterns []filterPattern, content string) []Violation {
	var out []Violation
	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(content, -1) {
			out = append(out, Violation{
				Type:        vtype,
				Severity:    violationSeverities[vtype],
				Match:       content[loc[0]:loc[1]],
				Description: p.description,
				Reason:      p.reason,
				Start:       loc[0],
				End:         loc[1],
			})
		}
	}
	return out
}

// correlateHistory defeats the split-digits evasion: once a recent prior
// message contained a setup phrase ("my number is", "contact me"), two or
// more bare 3-4 digit groups in the current message are flagged high.
func (f *contentFilterService) correlateHistory(content string, history []string) []Violation {
	if len(history) == 0 {
		return nil
	}
	if len(history) > historyDepth {
		history = history[:historyDepth]
	}

	primed := false
	for _, prior := range history {
		lowPrior := strings.ToLower(prior)
		for _, phrase := range f.setupPhrases {
			if strings.Contains(lowPrior, phrase) {
				primed = true
				break
			}
		}
		if primed {
			break
		}
	}
	if !primed {
		return nil
	}

	groups := f.digitGroupRe.FindAllStringIndex(content, -1)
	if len(groups) < minDigitGroups {
		return nil
	}

	out := make([]Violation, 0, len(groups))
	for _, loc := range groups {
		out = append(out, Violation{
			Type:        ViolationSuspiciousPattern,
			Severity:    SeverityHigh,
			Match:       content[loc[0]:loc[1]],
			Description: "split digit groups after setup phrase",
			Reason:      "Splitting a phone number across messages does not hide it",
			Start:       loc[0],
			End:         loc[1],
		})
	}
	return out
}

// dedupe drops repeated (type, description, match) triples, keeping
// first-seen order
func dedupe(violations []Violation) []Violation {
	seen := make(map[string]bool, len(violations))
	out := violations[:0]
	for _, v := range violations {
		key := string(v.Type) + "|" + v.Description + "|" + v.Match
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// redact replaces matched spans with type-specific placeholders, working in
// descending position order so earlier indexes stay valid. Overlapping spans
// are collapsed into the first replacement.
func redact(content string, violations []Violation) string {
	spans := make([]Violation, len(violations))
	copy(spans, violations)
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start > spans[j].Start })

	replacedFrom := len(content) + 1
	for _, v := range spans {
		if v.End > len(content) || v.End > replacedFrom {
			continue
		}
		content = content[:v.Start] + placeholders[v.Type] + content[v.End:]
		replacedFrom = v.Start
	}
	return content
}

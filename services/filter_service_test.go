package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeCleanMessage(t *testing.T) {
	f := NewContentFilterService()

	result := f.Analyze("Is the room near campus? I'd love to see it this week.", nil)

	assert.Equal(t, ActionAllow, result.Action)
	assert.Empty(t, result.Violations)
	assert.Equal(t, 0, result.SeverityScore)
	assert.Equal(t, "Is the room near campus? I'd love to see it this week.", result.FilteredContent)
}

func TestAnalyzeEmptyMessage(t *testing.T) {
	f := NewContentFilterService()

	for _, content := range []string{"", "   ", "\n\t"} {
		result := f.Analyze(content, nil)
		assert.Equal(t, ActionAllow, result.Action)
		assert.Empty(t, result.Violations)
	}
}

func TestAnalyzePhoneNumberBlocks(t *testing.T) {
	f := NewContentFilterService()

	result := f.Analyze("call me at 555-123-4567", nil)

	// A dashed NANP number trips both phone patterns, which is enough to
	// push the score past the block threshold.
	assert.Equal(t, ActionBlock, result.Action)
	assert.GreaterOrEqual(t, result.SeverityScore, blockThreshold)
	for _, v := range result.Violations {
		assert.Equal(t, ViolationPhoneNumber, v.Type)
		assert.Equal(t, SeverityHigh, v.Severity)
	}
	assert.Contains(t, result.FilteredContent, "[PHONE REMOVED]")
	assert.NotContains(t, result.FilteredContent, "555-123-4567")
}

func TestAnalyzeBarePhoneNumberWarns(t *testing.T) {
	f := NewContentFilterService()

	// Without separators only the NANP pattern matches, which lands in the
	// warn band.
	result := f.Analyze("my landlord is at 5551234567", nil)

	assert.Equal(t, ActionWarn, result.Action)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, ViolationPhoneNumber, result.Violations[0].Type)
	assert.Contains(t, result.FilteredContent, "[PHONE REMOVED]")
}

func TestAnalyzeEmailWarns(t *testing.T) {
	f := NewContentFilterService()

	result := f.Analyze("Reach out to John.Doe@Example.com instead", nil)

	assert.Equal(t, ActionWarn, result.Action)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, ViolationEmail, result.Violations[0].Type)
	assert.Equal(t, "John.Doe@Example.com", result.Violations[0].Match)
	assert.Contains(t, result.FilteredContent, "[EMAIL REMOVED]")
	assert.NotContains(t, result.FilteredContent, "Example.com")
}

func TestAnalyzeObfuscatedEmail(t *testing.T) {
	f := NewContentFilterService()

	result := f.Analyze("write to john [at] example [dot] com", nil)

	assert.Equal(t, ActionWarn, result.Action)
	require.NotEmpty(t, result.Violations)
	assert.Equal(t, ViolationEmail, result.Violations[0].Type)
	assert.Equal(t, "obfuscated email address", result.Violations[0].Description)
}

func TestAnalyzeMessagingApp(t *testing.T) {
	f := NewContentFilterService()

	result := f.Analyze("Add me on WhatsApp instead", nil)

	assert.Equal(t, ActionWarn, result.Action)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, ViolationMessagingApp, result.Violations[0].Type)
	assert.Contains(t, result.FilteredContent, "[APP NAME REMOVED]")
}

func TestAnalyzePaymentCircumventionAlwaysBlocks(t *testing.T) {
	f := NewContentFilterService()

	// One critical violation scores 5, but even if the thresholds moved the
	// critical class must keep blocking on its own.
	for _, content := range []string{
		"Just venmo me the deposit",
		"cash only, no exceptions",
		"we can avoid the fees this way",
		"I prefer wire transfer",
	} {
		result := f.Analyze(content, nil)
		assert.Equal(t, ActionBlock, result.Action, "content: %s", content)
		require.NotEmpty(t, result.Violations, "content: %s", content)
		assert.Equal(t, ViolationPaymentCircumvention, result.Violations[0].Type)
		assert.Equal(t, SeverityCritical, result.Violations[0].Severity)
	}
}

func TestAnalyzeSocialMediaEducates(t *testing.T) {
	f := NewContentFilterService()

	result := f.Analyze("I post my listings on instagram sometimes", nil)

	assert.Equal(t, ActionEducate, result.Action)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, ViolationSocialMedia, result.Violations[0].Type)
	assert.Equal(t, SeverityMedium, result.Violations[0].Severity)
	assert.Contains(t, result.FilteredContent, "[SOCIAL MEDIA REMOVED]")
}

func TestAnalyzeScoreBoundaries(t *testing.T) {
	f := NewContentFilterService()

	// One high violation scores exactly the warn threshold.
	warn := f.Analyze("email me: a@b.co", nil)
	assert.Equal(t, warnThreshold, warn.SeverityScore)
	assert.Equal(t, ActionWarn, warn.Action)

	// High plus medium scores exactly the block threshold.
	block := f.Analyze("email me: a@b.co, or find my instagram", nil)
	assert.Equal(t, blockThreshold, block.SeverityScore)
	assert.Equal(t, ActionBlock, block.Action)
}

func TestAnalyzeSplitDigitsAfterSetupPhrase(t *testing.T) {
	f := NewContentFilterService()
	history := []string{"ok then", "my number is coming in pieces"}

	result := f.Analyze("first 555 then 0123", history)

	assert.Equal(t, ActionBlock, result.Action)
	require.Len(t, result.Violations, 2)
	for _, v := range result.Violations {
		assert.Equal(t, ViolationSuspiciousPattern, v.Type)
		assert.Equal(t, SeverityHigh, v.Severity)
	}
	assert.Contains(t, result.FilteredContent, "[NUMBER REMOVED]")
}

func TestAnalyzeSplitDigitsWithoutSetupPhrase(t *testing.T) {
	f := NewContentFilterService()

	// The same digit groups are harmless without a prior setup phrase
	// (room numbers, rents, move-in dates).
	result := f.Analyze("first 555 then 0123", []string{"how big is the room?"})

	assert.Equal(t, ActionAllow, result.Action)
	assert.Empty(t, result.Violations)
}

func TestAnalyzeSingleDigitGroupNotFlagged(t *testing.T) {
	f := NewContentFilterService()

	result := f.Analyze("rent is 1200", []string{"my number is coming"})

	assert.Equal(t, ActionAllow, result.Action)
}

func TestAnalyzeHistoryDepthLimit(t *testing.T) {
	f := NewContentFilterService()

	// Setup phrase older than the lookback depth is out of scope.
	history := []string{"a", "b", "c", "d", "e", "my number is coming"}
	result := f.Analyze("first 555 then 0123", history)

	assert.Equal(t, ActionAllow, result.Action)
}

func TestAnalyzeDedupesRepeatedMatches(t *testing.T) {
	f := NewContentFilterService()

	result := f.Analyze("555-123-4567 or 555-123-4567", nil)

	// The same number twice still yields one violation per pattern, not per
	// occurrence.
	assert.Len(t, result.Violations, 2)
}

func TestAnalyzeRedactsAllSpans(t *testing.T) {
	f := NewContentFilterService()

	result := f.Analyze("mail a@b.co or try whatsapp", nil)

	assert.Contains(t, result.FilteredContent, "[EMAIL REMOVED]")
	assert.Contains(t, result.FilteredContent, "[APP NAME REMOVED]")
	assert.NotContains(t, result.FilteredContent, "a@b.co")
	assert.NotContains(t, strings.ToLower(result.FilteredContent), "whatsapp")
}

func TestAnalyzeMultibyteContent(t *testing.T) {
	f := NewContentFilterService()

	// Runes whose lowercase form has a different byte length must not shift
	// the redaction spans.
	content := strings.Repeat("Ⱥ", 5) + " find me on Instagram"
	result := f.Analyze(content, nil)

	assert.Equal(t, ActionWarn, result.Action)
	assert.Contains(t, result.FilteredContent, strings.Repeat("Ⱥ", 5))
	assert.Contains(t, result.FilteredContent, "[SOCIAL MEDIA REMOVED]")
	assert.NotContains(t, result.FilteredContent, "Instagram")
}

func TestAnalyzeMultibyteWithHistoryCorrelation(t *testing.T) {
	f := NewContentFilterService()

	result := f.Analyze("Ⱥ first 555 then 0123", []string{"my number is next"})

	assert.Equal(t, ActionBlock, result.Action)
	assert.Contains(t, result.FilteredContent, "[NUMBER REMOVED]")
	assert.NotContains(t, result.FilteredContent, "555")
	assert.NotContains(t, result.FilteredContent, "0123")
}

func TestAnalyzeSocialHandleNotConfusedWithEmail(t *testing.T) {
	f := NewContentFilterService()

	result := f.Analyze("follow @dorm_deals for listings", nil)

	require.NotEmpty(t, result.Violations)
	for _, v := range result.Violations {
		assert.Equal(t, ViolationSocialMedia, v.Type)
	}
}

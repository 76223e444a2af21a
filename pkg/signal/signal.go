package signal

import (
	"strings"

	"github.com/arc-systems/promptgate/pkg/provider"
)

// Domain classifies the subject area of a request.
type Domain string

const (
	DomainTechnical Domain = "technical"
	DomainGeneral   Domain = "general"
)

// Latency expresses how quickly the caller wants an answer.
type Latency string

const (
	LatencyLow    Latency = "low"
	LatencyNormal Latency = "normal"
)

// Signal is the feature vector derived from a request. It is computed
// fresh per request and never mutated afterwards.
type Signal struct {
	MentionsCode        bool
	RequiresLongContext bool
	NeedsMultimodal     bool
	NeedsHighSafety     bool
	Domain              Domain
	LatencyPreference   Latency
}

const (
	longContextTurns = 12
	longContextChars = 4000
)

var codeTokens = []string{
	"async", "class", "function", "func", "error", "traceback",
	"exception", "compile", "py", "js", "ts", "go", "sql", "json",
	"regex", "stack trace",
}

var imageExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp",
}

var safetyTerms = []string{
	"self-harm", "suicide", "kill myself", "hate", "racist", "explicit",
	"nsfw", "medical", "diagnosis", "prescription", "legal", "lawsuit",
	"weapon", "overdose",
}

var technicalTerms = []string{
	"api", "server", "database", "kubernetes", "docker", "deploy",
	"linux", "terminal", "compiler", "kernel", "network", "protocol",
	"algorithm", "framework", "backend", "frontend",
}

var urgencyTerms = []string{
	"urgent", "quick", "fast", "now", "asap", "immediately",
}

// Extract derives a Signal from the prompt and conversation history.
// An empty latencyOverride means the preference is inferred from the
// text. Extract is a pure function and safe for concurrent use.
func Extract(prompt string, history []provider.Turn, latencyOverride Latency) Signal {
	var sb strings.Builder
	sb.WriteString(prompt)
	for _, turn := range history {
		sb.WriteString("\n")
		sb.WriteString(turn.Text)
	}
	combined := sb.String()
	lower := strings.ToLower(combined)

	sig := Signal{
		MentionsCode:        mentionsCode(lower),
		RequiresLongContext: len(history) > longContextTurns || len(combined) > longContextChars,
		NeedsMultimodal:     containsImageURL(lower),
		NeedsHighSafety:     containsAnyTerm(lower, safetyTerms),
		Domain:              DomainGeneral,
		LatencyPreference:   LatencyNormal,
	}

	if containsAnyTerm(lower, technicalTerms) {
		sig.Domain = DomainTechnical
	}

	if latencyOverride != "" {
		sig.LatencyPreference = latencyOverride
	} else if containsAnyTerm(lower, urgencyTerms) {
		sig.LatencyPreference = LatencyLow
	}

	return sig
}

func mentionsCode(lower string) bool {
	if strings.Contains(lower, "```") {
		return true
	}
	return containsAnyTerm(lower, codeTokens)
}

func containsAnyTerm(lower string, terms []string) bool {
	for _, term := range terms {
		if containsTerm(lower, term) {
			return true
		}
	}
	return false
}

func containsImageURL(lower string) bool {
	for _, scheme := range []string{"http://", "https://"} {
		rest := lower
		for {
			idx := strings.Index(rest, scheme)
			if idx == -1 {
				break
			}
			rest = rest[idx+len(scheme):]
			end := strings.IndexFunc(rest, func(r rune) bool {
				return r == ' ' || r == '\n' || r == '\t'
			})
			url := rest
			if end != -1 {
				url = rest[:end]
			}
			url = strings.TrimRight(url, ".,;)")
			for _, ext := range imageExtensions {
				if strings.HasSuffix(url, ext) {
					return true
				}
			}
		}
	}
	return false
}

// containsTerm checks whether the text contains the term as a word or
// phrase boundary match.
func containsTerm(text, term string) bool {
	idx := strings.Index(text, term)
	if idx == -1 {
		return false
	}

	// Check word boundary before the term
	if idx > 0 {
		prev := text[idx-1]
		if isWordChar(prev) {
			return false
		}
	}

	// Check word boundary after the term
	endIdx := idx + len(term)
	if endIdx < len(text) {
		next := text[endIdx]
		if isWordChar(next) {
			return false
		}
	}

	return true
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

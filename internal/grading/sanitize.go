package grading

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Reasons attached to a flagged Verdict.
const (
	ReasonInstructionOverride = "instruction_override"
	ReasonRoleReassignment    = "role_reassignment"
	ReasonScoreManipulation   = "score_manipulation"
	ReasonDelimiterInjection  = "delimiter_injection"
	ReasonBoundaryForgery     = "boundary_forgery"
)

// Verdict is the result of inspecting a free-text answer.
type Verdict struct {
	Text    string   `json:"text"`
	Flagged bool     `json:"flagged"`
	Reasons []string `json:"reasons,omitempty"`
}

type detector struct {
	reason  string
	pattern *regexp.Regexp
}

var detectors = []detector{
	{ReasonInstructionOverride, regexp.MustCompile(`(?i)\b(ignore|disregard|forget|override)\s+(all\s+)?(of\s+)?(the\s+|your\s+)?(previous|above|prior|earlier|preceding)\b`)},
	{ReasonInstructionOverride, regexp.MustCompile(`(?i)\bnew\s+instructions?\s*:`)},
	{ReasonInstructionOverride, regexp.MustCompile(`(?i)\bsystem\s+prompt\b`)},
	{ReasonInstructionOverride, regexp.MustCompile(`무시|잊어`)},
	{ReasonInstructionOverride, regexp.MustCompile(`(위|아래)\s*(의\s*)?(내용|지시|명령)`)},
	{ReasonRoleReassignment, regexp.MustCompile(`(?i)\byou\s+are\s+now\b`)},
	{ReasonRoleReassignment, regexp.MustCompile(`(?i)\bact\s+as\s+(if|a|an|the)\b`)},
	{ReasonRoleReassignment, regexp.MustCompile(`(?i)\bpretend\s+(you|to)\b`)},
	{ReasonScoreManipulation, regexp.MustCompile(`(?i)\b(award|give|grant)\s+(me\s+|this\s+)?(\d+|full|max|maximum|perfect)\s+(points?|marks?|score)\b`)},
	{ReasonScoreManipulation, regexp.MustCompile(`(?i)\b(full|perfect|maximum)\s+(score|marks)\b`)},
	{ReasonScoreManipulation, regexp.MustCompile(`정답\s*처리|만점|무조건|점수를?\s*주|채점\s*(하지|안|말)`)},
	{ReasonDelimiterInjection, regexp.MustCompile(`(?m)^\s*(-{3,}|\*{3,}|_{3,}|#{2,}|#\s)`)},
	{ReasonDelimiterInjection, regexp.MustCompile("`{3,}|~{3,}")},
	{ReasonDelimiterInjection, regexp.MustCompile(`(?i)\[\s*(system|assistant|user)\s*\]|<\s*/?\s*(system|assistant|user)\s*>`)},
	{ReasonBoundaryForgery, regexp.MustCompile(`(?i)<\s*/?\s*user_answer\s*>`)},
}

var (
	boundaryTag = regexp.MustCompile(`(?i)<(\s*/?\s*user_answer\s*)>`)
	roleTag     = regexp.MustCompile(`(?i)<(\s*/?\s*(?:system|assistant|user)\s*)>`)
	roleBracket = regexp.MustCompile(`(?i)\[(\s*(?:system|assistant|user)\s*)\]`)
	fenceRuns   = regexp.MustCompile("-{3,}|#{2,}|`{3,}|\\*{3,}|_{3,}|~{3,}")
	headingMark = regexp.MustCompile(`(?m)^([ \t]*)#([ \t])`)
	blankRuns   = regexp.MustCompile(`[ \t]{2,}`)
)

var lookalikes = map[rune]rune{
	'-': '－',
	'#': '＃',
	'`': '｀',
	'*': '＊',
	'_': '＿',
	'~': '～',
}

// Inspect flags adversarial phrasing in text and returns a neutralized copy.
// Flagging never blocks grading.
func Inspect(text string) Verdict {
	reasons := detect(text)
	return Verdict{
		Text:    sanitize(text),
		Flagged: len(reasons) > 0,
		Reasons: reasons,
	}
}

func detect(text string) []string {
	// compatibility folding catches full-width and other look-alike evasions
	folded := norm.NFKC.String(stripControls(text))

	var reasons []string
	seen := make(map[string]bool)
	for _, d := range detectors {
		if seen[d.reason] {
			continue
		}
		if d.pattern.MatchString(folded) {
			seen[d.reason] = true
			reasons = append(reasons, d.reason)
		}
	}
	return reasons
}

func sanitize(text string) string {
	out := stripControls(text)
	out = boundaryTag.ReplaceAllString(out, "＜$1＞")
	out = roleTag.ReplaceAllString(out, "＜$1＞")
	out = roleBracket.ReplaceAllString(out, "［$1］")
	out = fenceRuns.ReplaceAllStringFunc(out, func(run string) string {
		return strings.Map(func(r rune) rune { return lookalikes[r] }, run)
	})
	out = headingMark.ReplaceAllString(out, "${1}＃${2}")
	out = blankRuns.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// stripControls drops non-printable characters, keeping tab and newline.
func stripControls(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n':
			return r
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		default:
			return r
		}
	}, text)
}

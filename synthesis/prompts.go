package synthesis

import (
	"fmt"
	"strings"
)

const (
	// EmptyCorpusMatrix is returned, without any completion call, when nothing is left to synthesize.
	EmptyCorpusMatrix = "gap: no valid text to synthesize."

	segmentSeparator = "\n\n---\n\n"
	docTag           = "[DOC_TXT]\n"
	urlTag           = "[URL_TXT]\n"

	mapMaxTokens    = 900
	reduceMaxTokens = 1800
)

const mapSystemPrompt = "You are a faithful and methodical synthesis engine. Produce a short, structured synthesis."

const reduceSystemPrompt = "You are a neuro-symbolic consolidator. Merge syntheses without duplicating and without inventing."

// framingPrompt opens every corpus. It is part of the first chunk.
func framingPrompt(specialty string) string {
	return strings.TrimSpace(fmt.Sprintf(`
You will act as a faithful technical synthesizer.
Specialty (core of the neural cell): %s

Task:
1) Extract essential terminology and definitions (glossary).
2) Extract business rules and constraints (grouped by category).
3) Identify processes (step by step) when they exist.
4) Identify exceptions, risks and areas of ambiguity.
5) Produce a Knowledge Matrix in a structured format (readable YAML or JSON).

Rules:
- Do not invent facts.
- If something is not in the documents, mark it as "gap".
- Favor fidelity and concision.
`, specialty))
}

func mapUserPrompt(specialty, chunk string) string {
	return strings.TrimSpace(fmt.Sprintf(`
Core/Specialty: %s

Input excerpt:
%s

Produce:
- essential glossary
- rules/constraints found
- processes (if any)
- exceptions/ambiguity
Format: short YAML
`, specialty, chunk))
}

func reduceUserPrompt(specialty string, partials []string) string {
	return strings.TrimSpace(fmt.Sprintf(`
Core/Specialty: %s

Consolidate the partial syntheses into ONE final Matrix.
Requirements:
- Deduplicate terms and rules
- Conflicts: mark as 'conflict' (do not resolve by inventing)
- Gaps: keep as 'gap'
- Final structure in YAML (or readable JSON)

Partial syntheses:
%s
`, specialty, strings.Join(partials, segmentSeparator)))
}

func fetchFailureText(url string, err error) string {
	return fmt.Sprintf("[failed to fetch %s] %v", url, err)
}

func nonTextualText(contentType string) string {
	return fmt.Sprintf("[non-textual content: %s]", contentType)
}

func mapGapText(index int, err error) string {
	return fmt.Sprintf("gap: partial %d unavailable (%v)", index+1, err)
}

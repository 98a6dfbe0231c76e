package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgallion1/kgest/internal/chunker"
	"github.com/dgallion1/kgest/internal/kg"
)

// Instructions names a preset extraction focus.
type Instructions string

const (
	General          Instructions = "GENERAL"
	TechRelations    Instructions = "TECH_RELATIONS"
	CompanyRelations Instructions = "COMPANY_RELATIONS"
)

var instructionText = map[Instructions]string{
	General: `Extract concrete (not abstract) knowledge graph triplets (subject, predicate, object) from the input text.
If existing triplets are provided, refer to them and avoid duplicates.`,
	TechRelations: `Extract knowledge graph triplets that describe relationships between technologies (software, tools, frameworks, hardware, protocols, etc.). Focus on how one technology depends on, competes with, extends, or integrates with another technology. Ignore organizational or non-technical entities.`,
	CompanyRelations: `Extract knowledge graph triplets that describe relationships between companies or organizations (partnerships, acquisitions, competition, supplier/customer relations, joint ventures, etc.). Ignore purely technological relationships unless they directly describe an interaction between companies.`,
}

// ParseInstructions resolves a preset name, case-insensitively. An empty
// name selects General.
func ParseInstructions(name string) (Instructions, error) {
	if strings.TrimSpace(name) == "" {
		return General, nil
	}
	in := Instructions(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := instructionText[in]; !ok {
		return "", fmt.Errorf("unknown instructions %q (want one of %s)", name, strings.Join(InstructionNames(), ", "))
	}
	return in, nil
}

// InstructionNames lists the preset names in sorted order.
func InstructionNames() []string {
	names := make([]string, 0, len(instructionText))
	for k := range instructionText {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

func (in Instructions) Text() string {
	if t, ok := instructionText[in]; ok {
		return t
	}
	return instructionText[General]
}

const systemPrompt = `You extract knowledge graph triplets from document sections.
Each triplet has a "subject", a "predicate" and an "object", all short strings.
Subjects and objects are concrete entities named in the text. Predicates are short verb phrases.
Respond with ONLY a JSON object of the form {"triplets": [{"subject": "...", "predicate": "...", "object": "..."}]}.
Return {"triplets": []} when the section holds nothing worth extracting.`

// BuildChunkPrompt creates the user prompt for one chunk: the preset
// instructions, the document title, the chunk's section breadcrumb, any
// previously extracted triplets, and finally the chunk text.
func BuildChunkPrompt(in Instructions, docTitle string, c chunker.Chunk, existing []kg.Triplet) string {
	var sb strings.Builder
	sb.WriteString(in.Text())
	sb.WriteString("\n\n---\n")
	sb.WriteString(fmt.Sprintf("Document: %q\n", docTitle))
	if ctx := c.Context(); ctx != "" {
		sb.WriteString("Section: ")
		sb.WriteString(ctx)
		sb.WriteString("\n")
	}
	if len(existing) > 0 {
		sb.WriteString("Existing triplets:\n")
		for _, t := range existing {
			sb.WriteString("- ")
			sb.WriteString(t.String())
			sb.WriteString("\n")
		}
	}
	sb.WriteString("---\n")
	sb.WriteString(c.Content)
	return sb.String()
}

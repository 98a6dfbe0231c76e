package extract

import (
	"strings"
	"testing"

	"github.com/dgallion1/kgest/internal/chunker"
	"github.com/dgallion1/kgest/internal/kg"
)

func TestParseInstructions(t *testing.T) {
	tests := []struct {
		in      string
		want    Instructions
		wantErr bool
	}{
		{"", General, false},
		{"general", General, false},
		{" tech_relations ", TechRelations, false},
		{"COMPANY_RELATIONS", CompanyRelations, false},
		{"poetry", "", true},
	}
	for _, tc := range tests {
		got, err := ParseInstructions(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseInstructions(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseInstructions(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInstructionNames(t *testing.T) {
	got := strings.Join(InstructionNames(), ",")
	if got != "COMPANY_RELATIONS,GENERAL,TECH_RELATIONS" {
		t.Errorf("got %q", got)
	}
}

func TestBuildChunkPrompt(t *testing.T) {
	ctx := "Guide > Setup"
	c := chunker.Chunk{Content: "Linear integrates with GitHub for issue sync.", HeaderContext: &ctx}
	existing := []kg.Triplet{{Subject: "Linear", Predicate: "is", Object: "issue tracker"}}

	p := BuildChunkPrompt(TechRelations, "Notes", c, existing)

	for _, want := range []string{
		"relationships between technologies",
		`Document: "Notes"`,
		"Section: Guide > Setup\n",
		"Existing triplets:\n- (Linear, is, issue tracker)\n",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
	if !strings.HasSuffix(p, "---\n"+c.Content) {
		t.Errorf("prompt should end with chunk text:\n%s", p)
	}
}

func TestBuildChunkPrompt_NoContextNoExisting(t *testing.T) {
	c := chunker.Chunk{Content: "Plain paragraph before any header."}
	p := BuildChunkPrompt(General, "Doc", c, nil)
	if strings.Contains(p, "Section:") {
		t.Error("prompt should omit the section line when the chunk has no context")
	}
	if strings.Contains(p, "Existing triplets") {
		t.Error("prompt should omit existing triplets when none are given")
	}
}

package chat

import (
	"strings"
	"testing"

	"github.com/dredbirozsolt/koncert24-hu-sub002/models"
)

func TestKnowledgePredicates(t *testing.T) {
	k := NewKnowledge(nil, testKnowledgeCfg())

	if !k.IsEscalationKeyword("PANASZT szeretnék tenni") {
		t.Fatal("keyword match must be case-insensitive")
	}
	if k.IsEscalationKeyword("zenekart keresek") {
		t.Fatal("plain booking question is not an escalation keyword")
	}
	if !k.HasUncertaintyMarker("Sajnos nem tudom pontosan.") {
		t.Fatal("uncertainty marker must match inside a sentence")
	}
	if k.HasUncertaintyMarker("A válaszidő 1-2 munkanap.") {
		t.Fatal("confident reply must not trip the marker")
	}
	if !k.IsForbiddenTopic("mi a véleményed a politika helyzetről") {
		t.Fatal("forbidden topic must match")
	}
}

func TestSystemPrompt_Blocks(t *testing.T) {
	k := NewKnowledge(nil, testKnowledgeCfg())

	prompt := k.SystemPrompt("")
	if !strings.Contains(prompt, "VISELKEDÉSI SZABÁLYOK") || !strings.Contains(prompt, "TUDÁSBÁZIS") {
		t.Fatal("prompt must contain the behavior and knowledge blocks")
	}
	if strings.Contains(prompt, "RELEVÁNS ELŐADÓK") {
		t.Fatal("no retrieval block without context")
	}

	prompt = k.SystemPrompt("• Tankcsapda (rock)")
	if !strings.Contains(prompt, "RELEVÁNS ELŐADÓK") || !strings.Contains(prompt, "Tankcsapda") {
		t.Fatal("context block must be spliced into the prompt")
	}
}

func TestCapitalizedTokens(t *testing.T) {
	tokens := capitalizedTokens("A Tankcsapda zenekart szeretném az Esküvőre, jó ötlet?")
	want := map[string]bool{"Tankcsapda": true, "Esküvőre": true}
	if len(tokens) != len(want) {
		t.Fatalf("got tokens %v", tokens)
	}
	for _, tok := range tokens {
		if !want[tok] {
			t.Fatalf("unexpected token %q in %v", tok, tokens)
		}
	}
}

func TestSearchEntityByName(t *testing.T) {
	db := newTestDB(t)
	db.Create(&models.Performer{Name: "Tankcsapda", Category: "rock", City: "Debrecen", PriceFrom: 500000, Active: true})
	db.Create(&models.Performer{Name: "Tankcsapda Tribute", Category: "rock", Active: true})
	db.Create(&models.Performer{Name: "Rejtett Zenekar", Active: false})

	k := NewKnowledge(db, testKnowledgeCfg())

	block := k.SearchEntityByName("Mennyiért jön a Tankcsapda?")
	if !strings.Contains(block, "Tankcsapda") || !strings.Contains(block, "Debrecen") || !strings.Contains(block, "500000 Ft") {
		t.Fatalf("expected a formatted match block, got %q", block)
	}
	if strings.Count(block, "Tankcsapda") < 2 {
		t.Fatal("both matching performers belong in the block")
	}

	if k.SearchEntityByName("Mikor jön a Rejtett Zenekar?") != "" {
		t.Fatal("inactive performers must not match")
	}
	if k.SearchEntityByName("mennyibe kerül egy zenekar?") != "" {
		t.Fatal("no capitalized token, no lookup")
	}

	cfg := testKnowledgeCfg()
	cfg.PerformerLookup = false
	if NewKnowledge(db, cfg).SearchEntityByName("Tankcsapda?") != "" {
		t.Fatal("disabled lookup must return nothing")
	}
}

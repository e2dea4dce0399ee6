package chat

import (
	"fmt"
	"log"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/dredbirozsolt/koncert24-hu-sub002/models"
)

// KnowledgeConfig carries the behavior rules and knowledge-base content the
// engine splices into the AI prompt. Values come from the environment with
// defaults matching the production deployment.
type KnowledgeConfig struct {
	CompanyName        string
	CompanyInfo        string
	EventTypes         string
	PricingPolicy      string
	FAQ                string
	EscalationKeywords []string
	ForbiddenTopics    []string
	UncertaintyMarkers []string
	PerformerLookup    bool
}

func LoadKnowledgeConfig() KnowledgeConfig {
	return KnowledgeConfig{
		CompanyName: envOr("SITE_NAME", "Koncert24"),
		CompanyInfo: envOr("CHAT_COMPANY_INFO",
			"A Koncert24 előadók és zenekarok közvetítésével foglalkozik rendezvényekre: esküvők, céges események, fesztiválok, városi rendezvények."),
		EventTypes: envOr("CHAT_EVENT_TYPES",
			"esküvő, céges rendezvény, születésnap, fesztivál, falunap, bál"),
		PricingPolicy: envOr("CHAT_PRICING_POLICY",
			"Az árak előadónként eltérnek és ajánlatkérés után derülnek ki. Konkrét árat csak írásos ajánlatban adunk."),
		FAQ: envOr("CHAT_FAQ",
			"Ajánlatkérés: az előadó adatlapján található űrlapon. Válaszidő: 1-2 munkanap. Lemondás: a szerződésben rögzített feltételek szerint."),
		EscalationKeywords: splitList(envOr("CHAT_ESCALATION_KEYWORDS",
			"panasz,reklamáció,ügyvéd,jogi,kártérítés,visszatérítés,számla probléma")),
		ForbiddenTopics: splitList(envOr("CHAT_FORBIDDEN_TOPICS",
			"politika,vallás,orvosi tanács,jogi tanács")),
		UncertaintyMarkers: splitList(envOr("CHAT_UNCERTAINTY_MARKERS",
			"nem tudom,nem vagyok biztos,munkatárs")),
		PerformerLookup: envOr("CHAT_PERFORMER_LOOKUP", "true") == "true",
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Knowledge supplies the prompt blocks and the predicate checks. The engine
// treats the blocks as opaque text; only their presence matters to it.
type Knowledge struct {
	db  *gorm.DB
	cfg KnowledgeConfig
}

func NewKnowledge(db *gorm.DB, cfg KnowledgeConfig) *Knowledge {
	return &Knowledge{db: db, cfg: cfg}
}

// BehaviorRules formats the tone and escalation constraints for the prompt.
func (k *Knowledge) BehaviorRules() string {
	var b strings.Builder
	b.WriteString("===== VISELKEDÉSI SZABÁLYOK =====\n")
	b.WriteString("• Udvarias, segítőkész, magázódó hangnem\n")
	b.WriteString("• Rövid, lényegre törő válaszok, maximum 5-6 mondat\n")
	b.WriteString("• Csak a megadott adatokból dolgozz, árat NE találj ki\n")
	fmt.Fprintf(&b, "• Tiltott témák: %s\n", strings.Join(k.cfg.ForbiddenTopics, ", "))
	b.WriteString("• Ha nem tudod a választ, mondd meg őszintén és ajánld fel, hogy munkatársunk segít\n")
	return b.String()
}

// KnowledgeBase formats the company/FAQ content block.
func (k *Knowledge) KnowledgeBase() string {
	var b strings.Builder
	b.WriteString("===== TUDÁSBÁZIS =====\n")
	fmt.Fprintf(&b, "Cég: %s\n", k.cfg.CompanyName)
	fmt.Fprintf(&b, "Tevékenység: %s\n", k.cfg.CompanyInfo)
	fmt.Fprintf(&b, "Rendezvénytípusok: %s\n", k.cfg.EventTypes)
	fmt.Fprintf(&b, "Árazás: %s\n", k.cfg.PricingPolicy)
	fmt.Fprintf(&b, "GYIK: %s\n", k.cfg.FAQ)
	return b.String()
}

// SystemPrompt assembles the full prompt: behavior rules, knowledge base and
// the optional retrieval block for this message.
func (k *Knowledge) SystemPrompt(contextBlock string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Te a %s ügyfélszolgálati asszisztense vagy.\n\n", k.cfg.CompanyName)
	b.WriteString(k.BehaviorRules())
	b.WriteString("\n")
	b.WriteString(k.KnowledgeBase())
	if contextBlock != "" {
		b.WriteString("\n===== RELEVÁNS ELŐADÓK =====\n")
		b.WriteString(contextBlock)
	}
	return b.String()
}

// IsEscalationKeyword reports whether the message matches a configured
// auto-escalate keyword (case-insensitive substring).
func (k *Knowledge) IsEscalationKeyword(text string) bool {
	return containsAny(text, k.cfg.EscalationKeywords)
}

// IsForbiddenTopic reports whether the message touches a forbidden topic.
func (k *Knowledge) IsForbiddenTopic(text string) bool {
	return containsAny(text, k.cfg.ForbiddenTopics)
}

// HasUncertaintyMarker reports whether an AI reply signals that it could not
// answer, which is an escalation trigger.
func (k *Knowledge) HasUncertaintyMarker(reply string) bool {
	return containsAny(reply, k.cfg.UncertaintyMarkers)
}

func containsAny(text string, list []string) bool {
	lower := strings.ToLower(text)
	for _, item := range list {
		if item != "" && strings.Contains(lower, strings.ToLower(item)) {
			return true
		}
	}
	return false
}

const maxEntityMatches = 10

// SearchEntityByName extracts capitalized tokens from a free-text query and
// looks up matching performers by name substring. Returns a formatted block
// of up to 10 matches, or "" when nothing matches or the lookup is
// administratively disabled.
func (k *Knowledge) SearchEntityByName(query string) string {
	if !k.cfg.PerformerLookup || k.db == nil {
		return ""
	}
	tokens := capitalizedTokens(query)
	if len(tokens) == 0 {
		return ""
	}

	seen := make(map[uint]bool)
	var matches []models.Performer
	for _, tok := range tokens {
		var found []models.Performer
		err := k.db.Where("active = ? AND name LIKE ?", true, "%"+tok+"%").
			Limit(maxEntityMatches).
			Find(&found).Error
		if err != nil {
			log.Printf("[Chat] performer lookup failed for %q: %v", tok, err)
			continue
		}
		for _, p := range found {
			if !seen[p.ID] && len(matches) < maxEntityMatches {
				seen[p.ID] = true
				matches = append(matches, p)
			}
		}
	}
	if len(matches) == 0 {
		return ""
	}

	var b strings.Builder
	for _, p := range matches {
		fmt.Fprintf(&b, "• %s", p.Name)
		if p.Category != "" {
			fmt.Fprintf(&b, " (%s)", p.Category)
		}
		if p.City != "" {
			fmt.Fprintf(&b, " – %s", p.City)
		}
		if p.PriceFrom > 0 {
			fmt.Fprintf(&b, " – ártól: %d Ft", p.PriceFrom)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// capitalizedTokens picks words starting with an uppercase letter, which is
// the heuristic for names inside a Hungarian sentence. Tokens shorter than
// three runes are skipped to avoid matching sentence starts like "A" or "Az".
func capitalizedTokens(text string) []string {
	var tokens []string
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,!?:;\"'()")
		if utf8.RuneCountInString(word) < 3 {
			continue
		}
		first, _ := utf8.DecodeRuneInString(word)
		if unicode.IsUpper(first) {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

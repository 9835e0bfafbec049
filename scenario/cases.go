package scenario

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// CaseData is one randomly assembled client case. Cases are built directly
// from the scenario tables, without an inference call, so a new training
// starts instantly.
type CaseData struct {
	Position  string `json:"position"`
	Company   string `json:"company"`
	Product   string `json:"product"`
	Situation string `json:"situation"`
	Volume    string `json:"volume"`
	Frequency string `json:"frequency"`
	Urgency   string `json:"urgency"`
}

// Hash identifies the case combination for recent-case exclusion.
func (c CaseData) Hash() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		c.Position, c.Company, c.Product, c.Situation,
	}, "|")))
	return hex.EncodeToString(sum[:8])
}

// CaseGenerator assembles random cases from the scenario tables. Safe for
// concurrent use: rand.Rand is not, so draws are serialized.
type CaseGenerator struct {
	tables CaseTables

	mu  sync.Mutex
	rng *rand.Rand
}

// NewCaseGenerator creates a generator over the scenario's case tables.
func NewCaseGenerator(tables CaseTables, rng *rand.Rand) *CaseGenerator {
	return &CaseGenerator{tables: tables, rng: rng}
}

// Generate picks a random case whose hash is not in excludeHashes. After a
// bounded number of attempts the last candidate is returned anyway: with small
// tables a user who trained a lot would otherwise never get a case.
func (g *CaseGenerator) Generate(excludeHashes []string) CaseData {
	excluded := make(map[string]struct{}, len(excludeHashes))
	for _, h := range excludeHashes {
		excluded[h] = struct{}{}
	}

	var candidate CaseData
	for attempt := 0; attempt < 20; attempt++ {
		candidate = CaseData{
			Position:  g.pick(g.tables.Positions),
			Company:   g.pick(g.tables.Companies),
			Product:   g.pick(g.tables.Products),
			Situation: g.pick(g.tables.Situations),
			Volume:    g.pick(g.tables.Volumes),
			Frequency: g.pick(g.tables.Frequencies),
			Urgency:   g.pick(g.tables.Urgencies),
		}
		if _, seen := excluded[candidate.Hash()]; !seen {
			return candidate
		}
	}
	return candidate
}

func (g *CaseGenerator) pick(values []string) string {
	if len(values) == 0 {
		return ""
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return values[g.rng.Intn(len(values))]
}

// Render builds the case text shown to the trainee.
func (c CaseData) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Клиент: %s, %s.\n", c.Position, c.Company)
	fmt.Fprintf(&b, "Интересуется: %s.\n", c.Product)
	fmt.Fprintf(&b, "Объём закупок: %s, %s.\n", c.Volume, c.Frequency)
	fmt.Fprintf(&b, "Характер закупки: %s.\n", c.Urgency)
	b.WriteString("\nКлиент занят и отвечает кратко. Выясните его скрытые потребности с помощью SPIN-вопросов.")
	return b.String()
}

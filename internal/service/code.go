package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"fieldbook/internal/domain"
	"fieldbook/internal/metrics"
	"fieldbook/internal/models"
)

// CodeGenerator produces short public reservation codes: the FB- prefix
// followed by six characters from an alphabet without visually ambiguous
// glyphs. Candidates are checked against stored codes; after a bounded
// number of collisions it falls back to a deterministic code derived
// from the clock, so generation always terminates.
type CodeGenerator struct {
	repo  codeStore
	clock domain.Clock
}

type codeStore interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

func NewCodeGenerator(repo codeStore, clock domain.Clock) *CodeGenerator {
	return &CodeGenerator{repo: repo, clock: clock}
}

func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < models.CodeMaxAttempts; attempt++ {
		candidate := g.randomCode()
		exists, err := g.repo.CodeExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check code candidate: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}

	// Детерминированный фолбэк: два вызова в один и тот же наносекундный
	// тик дали бы одинаковый код - принятый риск, не устраняется.
	metrics.IncCodeFallback()
	return g.fallbackCode(), nil
}

func (g *CodeGenerator) randomCode() string {
	var sb strings.Builder
	sb.WriteString(models.CodePrefix)
	for i := 0; i < models.CodeLength; i++ {
		sb.WriteByte(models.CodeAlphabet[rand.Intn(len(models.CodeAlphabet))])
	}
	return sb.String()
}

func (g *CodeGenerator) fallbackCode() string {
	n := g.clock.Now().UnixNano()
	if n < 0 {
		n = -n
	}

	base := int64(len(models.CodeAlphabet))
	var digits []byte
	for n > 0 {
		digits = append(digits, models.CodeAlphabet[n%base])
		n /= base
	}
	// Least significant digits change fastest, keep them first.
	if len(digits) > models.CodeLength {
		digits = digits[:models.CodeLength]
	}
	for len(digits) < models.CodeLength {
		digits = append(digits, models.CodeAlphabet[0])
	}
	return models.CodePrefix + string(digits)
}

package main

import (
	"strings"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
)

const patternPrefix = "re:"

// parseMatchers: "re:^--short$" — регулярка, остальное — точная строка.
func parseMatchers(raw []string) ([]domain.ArgMatcher, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]domain.ArgMatcher, 0, len(raw))
	for _, s := range raw {
		if expr, ok := strings.CutPrefix(s, patternPrefix); ok {
			m, err := domain.PatternArg(expr)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
			continue
		}
		out = append(out, domain.ExactArg(s))
	}
	return out, nil
}

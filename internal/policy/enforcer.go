package policy

import (
	"fmt"
	"path/filepath"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
)

// Enforcer — точка принятия решения (PDP) для шлюза.
type Enforcer interface {
	Classify(command string, args []string) domain.Verdict
}

// EntryLookup — все, что валидатору нужно от реестра.
type EntryLookup interface {
	Get(name string) (domain.WhitelistEntry, bool)
}

// Validator — чистая функция классификации поверх реестра.
type Validator struct {
	lookup EntryLookup
}

func NewValidator(lookup EntryLookup) *Validator {
	return &Validator{lookup: lookup}
}

// BaseName — последний сегмент пути: /usr/bin/ls и ls попадают в одно правило.
// Разные бинарники с одинаковым именем делят одну политику.
func BaseName(command string) string {
	return filepath.Base(command)
}

// Classify определяет уровень безопасности запроса.
// Несовпадение аргументов не отклоняет запрос, а переводит его на апрув.
func (v *Validator) Classify(command string, args []string) domain.Verdict {
	base := BaseName(command)

	entry, ok := v.lookup.Get(base)
	if !ok {
		return domain.Verdict{Command: base}
	}

	verdict := domain.Verdict{Command: base, Known: true, Level: entry.Level}

	// Forbidden: матчеры не смотрим вообще
	if entry.Level == domain.LevelForbidden {
		return verdict
	}

	if len(entry.AllowedArgs) == 0 {
		return verdict
	}

	if reason := mismatch(entry.AllowedArgs, args); reason != "" {
		verdict.Level = domain.LevelRequiresApproval
		verdict.Reason = reason
	}
	return verdict
}

// mismatch возвращает причину первого несовпадения или пустую строку.
func mismatch(matchers []domain.ArgMatcher, args []string) string {
	if len(args) > len(matchers) {
		return fmt.Sprintf("%d arguments supplied, at most %d allowed", len(args), len(matchers))
	}
	for i, arg := range args {
		if !matchers[i].Match(arg) {
			return fmt.Sprintf("argument %d %q does not match %s", i, arg, matchers[i])
		}
	}
	return ""
}

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// SecurityLevel определяет, что делать с командой
type SecurityLevel string

const (
	LevelSafe             SecurityLevel = "safe"              // Выполнить сразу
	LevelRequiresApproval SecurityLevel = "requires_approval" // Human-in-the-loop
	LevelForbidden        SecurityLevel = "forbidden"         // Никогда не выполнять
)

// Valid проверяет, что уровень входит в известный набор.
func (l SecurityLevel) Valid() bool {
	switch l {
	case LevelSafe, LevelRequiresApproval, LevelForbidden:
		return true
	}
	return false
}

// ParseSecurityLevel разбирает уровень из wire-формата.
func ParseSecurityLevel(s string) (SecurityLevel, error) {
	l := SecurityLevel(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown security level %q", s)
	}
	return l, nil
}

// ArgMatcher — позиционное правило для аргумента: точная строка или регулярка.
type ArgMatcher struct {
	Exact   string
	Pattern *regexp.Regexp
}

// ExactArg создает матчер на точное совпадение.
func ExactArg(s string) ArgMatcher {
	return ArgMatcher{Exact: s}
}

// PatternArg компилирует регулярку. Поиск не заякорен, как RegExp.test.
func PatternArg(expr string) (ArgMatcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return ArgMatcher{}, fmt.Errorf("invalid argument pattern %q: %w", expr, err)
	}
	return ArgMatcher{Pattern: re}, nil
}

// MustPatternArg — вариант PatternArg для статических политик.
func MustPatternArg(expr string) ArgMatcher {
	m, err := PatternArg(expr)
	if err != nil {
		panic(err)
	}
	return m
}

// IsPattern сообщает, задан ли матчер регуляркой.
func (m ArgMatcher) IsPattern() bool {
	return m.Pattern != nil
}

// Match проверяет один аргумент.
func (m ArgMatcher) Match(arg string) bool {
	if m.Pattern != nil {
		return m.Pattern.MatchString(arg)
	}
	return m.Exact == arg
}

func (m ArgMatcher) String() string {
	if m.Pattern != nil {
		return "/" + m.Pattern.String() + "/"
	}
	return m.Exact
}

// patternWire — представление регулярки на проводе: {"pattern": "..."}
type patternWire struct {
	Pattern string `json:"pattern" yaml:"pattern"`
}

func (m ArgMatcher) MarshalJSON() ([]byte, error) {
	if m.Pattern != nil {
		return json.Marshal(patternWire{Pattern: m.Pattern.String()})
	}
	return json.Marshal(m.Exact)
}

func (m *ArgMatcher) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = ExactArg(s)
		return nil
	}

	var w patternWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("argument matcher must be a string or {\"pattern\": ...}: %w", err)
	}
	return m.fromPattern(w.Pattern)
}

func (m ArgMatcher) MarshalYAML() (interface{}, error) {
	if m.Pattern != nil {
		return patternWire{Pattern: m.Pattern.String()}, nil
	}
	return m.Exact, nil
}

func (m *ArgMatcher) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*m = ExactArg(node.Value)
		return nil
	case yaml.MappingNode:
		var w patternWire
		if err := node.Decode(&w); err != nil {
			return err
		}
		return m.fromPattern(w.Pattern)
	default:
		return fmt.Errorf("line %d: argument matcher must be a string or a pattern mapping", node.Line)
	}
}

func (m *ArgMatcher) fromPattern(expr string) error {
	if expr == "" {
		return errors.New("argument pattern is empty")
	}
	pm, err := PatternArg(expr)
	if err != nil {
		return err
	}
	*m = pm
	return nil
}

// WhitelistEntry — правило безопасности для одной команды.
// Пустой AllowedArgs означает «любые аргументы».
type WhitelistEntry struct {
	Command     string        `json:"command" yaml:"command"`
	Level       SecurityLevel `json:"securityLevel" yaml:"securityLevel"`
	AllowedArgs []ArgMatcher  `json:"allowedArgs,omitempty" yaml:"allowedArgs,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
}

// Clone отдает копию, не разделяющую слайс матчеров с оригиналом.
func (e WhitelistEntry) Clone() WhitelistEntry {
	if e.AllowedArgs != nil {
		args := make([]ArgMatcher, len(e.AllowedArgs))
		copy(args, e.AllowedArgs)
		e.AllowedArgs = args
	}
	return e
}

// Classification — итог проверки запроса валидатором.
type Classification string

const (
	ClassAllowed       Classification = "ALLOWED"
	ClassNeedsApproval Classification = "NEEDS_APPROVAL"
	ClassForbidden     Classification = "FORBIDDEN"
	ClassUnknown       Classification = "UNKNOWN"
)

// Verdict — решение валидатора по конкретному запросу.
type Verdict struct {
	Command string        // Базовое имя команды, по которому искали в реестре
	Known   bool          // Нашлась ли команда в реестре
	Level   SecurityLevel // Итоговый уровень (с учетом несовпадения аргументов)
	Reason  string        // Почему уровень отличается от настроенного
}

// Classify переводит вердикт в класс маршрутизации запроса.
func (v Verdict) Classify() Classification {
	if !v.Known {
		return ClassUnknown
	}
	switch v.Level {
	case LevelSafe:
		return ClassAllowed
	case LevelRequiresApproval:
		return ClassNeedsApproval
	case LevelForbidden:
		return ClassForbidden
	}
	// Неизвестный уровень в реестре трактуем как отсутствие права
	return ClassUnknown
}

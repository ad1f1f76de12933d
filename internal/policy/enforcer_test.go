package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
)

// poisonedLookup отдает правило, матчеры которого не совпадают ни с чем.
type poisonedLookup struct {
	entry   domain.WhitelistEntry
	lookups int
}

func (c *poisonedLookup) Get(name string) (domain.WhitelistEntry, bool) {
	if name != c.entry.Command {
		return domain.WhitelistEntry{}, false
	}
	e := c.entry.Clone()
	for i := range e.AllowedArgs {
		e.AllowedArgs[i] = domain.ExactArg("\x00never")
	}
	c.lookups++
	return e, true
}

func TestValidator_Classify(t *testing.T) {
	reg := NewRegistry(zap.NewNop(),
		domain.WhitelistEntry{Command: "ls", Level: domain.LevelSafe},
		domain.WhitelistEntry{Command: "mv", Level: domain.LevelRequiresApproval},
		domain.WhitelistEntry{Command: "rm", Level: domain.LevelForbidden,
			AllowedArgs: []domain.ArgMatcher{domain.ExactArg("-i")}},
		domain.WhitelistEntry{Command: "git", Level: domain.LevelSafe,
			AllowedArgs: []domain.ArgMatcher{domain.ExactArg("status"), domain.MustPatternArg(`^--(short|long)$`)}},
		domain.WhitelistEntry{Command: "cp", Level: domain.LevelRequiresApproval,
			AllowedArgs: []domain.ArgMatcher{domain.ExactArg("a")}},
		domain.WhitelistEntry{Command: "any", Level: domain.LevelSafe, AllowedArgs: []domain.ArgMatcher{}},
	)
	v := NewValidator(reg)

	tests := []struct {
		name       string
		command    string
		args       []string
		wantKnown  bool
		wantLevel  domain.SecurityLevel
		wantClass  domain.Classification
		wantReason bool
	}{
		{
			name:      "safe without matchers accepts any args",
			command:   "ls",
			args:      []string{"-la", "; rm -rf /"},
			wantKnown: true,
			wantLevel: domain.LevelSafe,
			wantClass: domain.ClassAllowed,
		},
		{
			name:      "full path resolves to base name",
			command:   "/usr/bin/ls",
			wantKnown: true,
			wantLevel: domain.LevelSafe,
			wantClass: domain.ClassAllowed,
		},
		{
			name:      "unknown command",
			command:   "curl",
			args:      []string{"http://example.com"},
			wantClass: domain.ClassUnknown,
		},
		{
			name:      "unknown full path",
			command:   "/opt/bin/curl",
			wantClass: domain.ClassUnknown,
		},
		{
			name:      "requires approval stays requires approval",
			command:   "mv",
			args:      []string{"a", "b"},
			wantKnown: true,
			wantLevel: domain.LevelRequiresApproval,
			wantClass: domain.ClassNeedsApproval,
		},
		{
			name:      "forbidden ignores matching args",
			command:   "rm",
			args:      []string{"-i"},
			wantKnown: true,
			wantLevel: domain.LevelForbidden,
			wantClass: domain.ClassForbidden,
		},
		{
			name:      "forbidden ignores mismatching args",
			command:   "/bin/rm",
			args:      []string{"-rf", "/"},
			wantKnown: true,
			wantLevel: domain.LevelForbidden,
			wantClass: domain.ClassForbidden,
		},
		{
			name:      "safe with all args matching",
			command:   "git",
			args:      []string{"status", "--short"},
			wantKnown: true,
			wantLevel: domain.LevelSafe,
			wantClass: domain.ClassAllowed,
		},
		{
			name:      "safe with fewer args than matchers",
			command:   "git",
			args:      []string{"status"},
			wantKnown: true,
			wantLevel: domain.LevelSafe,
			wantClass: domain.ClassAllowed,
		},
		{
			name:       "safe with exact mismatch is downgraded",
			command:    "git",
			args:       []string{"push", "--short"},
			wantKnown:  true,
			wantLevel:  domain.LevelRequiresApproval,
			wantClass:  domain.ClassNeedsApproval,
			wantReason: true,
		},
		{
			name:       "safe with pattern mismatch is downgraded",
			command:    "git",
			args:       []string{"status", "--porcelain"},
			wantKnown:  true,
			wantLevel:  domain.LevelRequiresApproval,
			wantClass:  domain.ClassNeedsApproval,
			wantReason: true,
		},
		{
			name:       "too many args is downgraded",
			command:    "git",
			args:       []string{"status", "--short", "extra"},
			wantKnown:  true,
			wantLevel:  domain.LevelRequiresApproval,
			wantClass:  domain.ClassNeedsApproval,
			wantReason: true,
		},
		{
			name:       "requires approval with mismatch stays requires approval",
			command:    "cp",
			args:       []string{"b"},
			wantKnown:  true,
			wantLevel:  domain.LevelRequiresApproval,
			wantClass:  domain.ClassNeedsApproval,
			wantReason: true,
		},
		{
			name:      "empty matcher list means any args",
			command:   "any",
			args:      []string{"x", "y", "z"},
			wantKnown: true,
			wantLevel: domain.LevelSafe,
			wantClass: domain.ClassAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Classify(tt.command, tt.args)
			assert.Equal(t, tt.wantKnown, got.Known)
			assert.Equal(t, tt.wantClass, got.Classify())
			if tt.wantKnown {
				assert.Equal(t, tt.wantLevel, got.Level)
			}
			if tt.wantReason {
				assert.NotEmpty(t, got.Reason)
			} else {
				assert.Empty(t, got.Reason)
			}
		})
	}
}

func TestValidator_ForbiddenNeverEvaluatesMatchers(t *testing.T) {
	// Матчеры подменены на «никогда не совпадает»: если бы их смотрели,
	// вердикт понизился бы до requires_approval
	lookup := &poisonedLookup{entry: domain.WhitelistEntry{
		Command:     "rm",
		Level:       domain.LevelForbidden,
		AllowedArgs: []domain.ArgMatcher{domain.ExactArg("-i")},
	}}

	got := NewValidator(lookup).Classify("rm", []string{"-i"})

	assert.Equal(t, domain.LevelForbidden, got.Level)
	assert.Empty(t, got.Reason)
	assert.Equal(t, 1, lookup.lookups)
}

func TestValidator_SeesRegistryMutations(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	v := NewValidator(reg)

	assert.Equal(t, domain.ClassUnknown, v.Classify("make", nil).Classify())

	reg.Add(domain.WhitelistEntry{Command: "make", Level: domain.LevelSafe})
	assert.Equal(t, domain.ClassAllowed, v.Classify("make", nil).Classify())

	reg.UpdateLevel("make", domain.LevelForbidden)
	assert.Equal(t, domain.ClassForbidden, v.Classify("make", nil).Classify())

	reg.Remove("make")
	assert.Equal(t, domain.ClassUnknown, v.Classify("make", nil).Classify())
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "ls", BaseName("/usr/bin/ls"))
	assert.Equal(t, "ls", BaseName("ls"))
	assert.Equal(t, "ls", BaseName("./ls"))
}

package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhitelistEntry_WireShape(t *testing.T) {
	raw := `{"command":"git","securityLevel":"safe","allowedArgs":["status",{"pattern":"^--short$"}],"description":"vcs"}`

	var e WhitelistEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &e))

	assert.Equal(t, "git", e.Command)
	assert.Equal(t, LevelSafe, e.Level)
	require.Len(t, e.AllowedArgs, 2)
	assert.Equal(t, "status", e.AllowedArgs[0].Exact)
	assert.True(t, e.AllowedArgs[1].IsPattern())

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestArgMatcher_RejectsGarbage(t *testing.T) {
	var m ArgMatcher
	assert.Error(t, json.Unmarshal([]byte(`42`), &m))
	assert.Error(t, json.Unmarshal([]byte(`{"pattern":"("}`), &m))
	assert.Error(t, json.Unmarshal([]byte(`{"pattern":""}`), &m))
}

func TestArgMatcher_PatternIsUnanchored(t *testing.T) {
	m := MustPatternArg(`\.txt`)
	assert.True(t, m.Match("notes.txt"))
	assert.True(t, m.Match("notes.txt.bak"))
	assert.False(t, m.Match("notes.md"))

	exact := ExactArg("-la")
	assert.True(t, exact.Match("-la"))
	assert.False(t, exact.Match("-la "))
}

func TestVerdict_Classify(t *testing.T) {
	assert.Equal(t, ClassUnknown, Verdict{Command: "x"}.Classify())
	assert.Equal(t, ClassAllowed, Verdict{Known: true, Level: LevelSafe}.Classify())
	assert.Equal(t, ClassNeedsApproval, Verdict{Known: true, Level: LevelRequiresApproval}.Classify())
	assert.Equal(t, ClassForbidden, Verdict{Known: true, Level: LevelForbidden}.Classify())
	assert.Equal(t, ClassUnknown, Verdict{Known: true, Level: "root"}.Classify())
}

func TestParseSecurityLevel(t *testing.T) {
	l, err := ParseSecurityLevel("requires_approval")
	require.NoError(t, err)
	assert.Equal(t, LevelRequiresApproval, l)

	_, err = ParseSecurityLevel("RequiresApproval")
	assert.Error(t, err)
}

func TestErrors(t *testing.T) {
	cause := errors.New("exit status 2")
	var err error = &ExecutionError{Command: "ls", ExitCode: 2, Stderr: "no such file\n", Err: cause}

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "no such file")

	err = &TimeoutError{Command: "sleep", Timeout: time.Second}
	assert.Contains(t, err.Error(), "1s")

	err = &DeniedError{ID: "abc", Reason: "not today"}
	assert.Contains(t, err.Error(), "not today")
}

package api

import (
	"fmt"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
)

// WhitelistEntry на проводе совпадает с domain.WhitelistEntry (JSON-теги там же).
type WhitelistEntry = domain.WhitelistEntry

// LevelUpdate — тело PUT /v1/whitelist/{command}/level.
type LevelUpdate struct {
	SecurityLevel domain.SecurityLevel `json:"securityLevel"`
}

// ValidateEntry — проверка на границе: реестр сам ничего не валидирует.
func ValidateEntry(e WhitelistEntry) error {
	if e.Command == "" {
		return fmt.Errorf("%w: command is required", ErrInvalid)
	}
	if !e.Level.Valid() {
		return fmt.Errorf("%w: unknown security level %q", ErrInvalid, e.Level)
	}
	return nil
}

func ValidateLevel(level domain.SecurityLevel) error {
	if !level.Valid() {
		return fmt.Errorf("%w: unknown security level %q", ErrInvalid, level)
	}
	return nil
}

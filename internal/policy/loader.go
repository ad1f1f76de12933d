package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"gopkg.in/yaml.v3"
)

// whitelistFile — формат файла с сидами:
//
//	whitelist:
//	  - command: git
//	    securityLevel: safe
//	    allowedArgs: ["status", {pattern: "^--short$"}]
type whitelistFile struct {
	Whitelist []domain.WhitelistEntry `yaml:"whitelist"`
}

// LoadFile читает сиды белого списка из YAML.
func LoadFile(path string) ([]domain.WhitelistEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read whitelist file: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML и проверяет уровни.
func Parse(data []byte) ([]domain.WhitelistEntry, error) {
	var f whitelistFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil // Пустой файл — пустой список
		}
		return nil, fmt.Errorf("decode whitelist: %w", err)
	}

	for i, e := range f.Whitelist {
		if e.Command == "" {
			return nil, fmt.Errorf("whitelist entry %d: command is empty", i)
		}
		if !e.Level.Valid() {
			return nil, fmt.Errorf("whitelist entry %q: unknown security level %q", e.Command, e.Level)
		}
	}
	return f.Whitelist, nil
}

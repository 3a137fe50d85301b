// human readable and writable stdlib types
// which can be used inside config file
package model

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Path is a filesystem path. Environment variables and a leading ~ are
// expanded when it is parsed from the config file.
type Path string

func (p *Path) UnmarshalText(text []byte) error {
	if p == nil {
		return errors.New("can't unmarshal to nil")
	}
	if len(text) == 0 {
		return errors.New("can't be empty")
	}
	expanded := os.ExpandEnv(string(text))
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~"))
	}
	*p = Path(filepath.Clean(expanded))
	return nil
}

func (p Path) MarshalText() ([]byte, error) {
	return []byte(p), nil
}

func (p Path) String() string {
	return string(p)
}

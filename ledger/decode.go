package ledger

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Decode reads a "code: status" mapping. JSON objects are accepted since they are
// valid YAML.
func Decode(r io.Reader) (Ledger, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse ledger: %w", err)
	}

	l := make(Ledger, len(raw))
	for code, label := range raw {
		st, err := ParseStatus(label)
		if err != nil {
			return nil, fmt.Errorf("course %s: %w", code, err)
		}
		l[code] = st
	}
	return l, nil
}

// DecodeFile reads a ledger file.
func DecodeFile(path string) (Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

package text

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mitchellh/go-homedir"
)

// Replacement swaps every case-insensitive occurrence of From for To.
type Replacement struct {
	From string
	To   string
}

// LoadReplacements reads a JSON object of from/to pairs. Pairs keep the
// order they have in the document, which is the order they are applied in.
func LoadReplacements(r io.Reader) ([]Replacement, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read replacements: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("replacements must be a JSON object")
	}

	var out []Replacement
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read replacement key: %w", err)
		}
		from, _ := tok.(string)

		var to string
		if err := dec.Decode(&to); err != nil {
			return nil, fmt.Errorf("replacement for %q must be a string: %w", from, err)
		}
		out = append(out, Replacement{From: from, To: to})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read replacements: %w", err)
	}
	return out, nil
}

// LoadReplacementsFile loads replacements from a JSON file. A leading ~ is
// expanded.
func LoadReplacementsFile(path string) ([]Replacement, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadReplacements(f)
}

// ReplacementsFromMap converts a map into replacements ordered by key, since
// map iteration order is not stable.
func ReplacementsFromMap(m map[string]string) []Replacement {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Replacement, 0, len(keys))
	for _, k := range keys {
		out = append(out, Replacement{From: k, To: m[k]})
	}
	return out
}

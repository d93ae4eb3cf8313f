package text

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/text/language"
	ntw "moul.io/number-to-words"
)

// DefaultLanguage is the language numbers are spelled in.
const DefaultLanguage = "fr"

// maxSpelled is the largest number spelled as a whole; longer digit runs are
// read digit by digit.
const maxSpelled = 999_999_999

var digitRun = regexp.MustCompile(`[0-9]+`)

var (
	supported = []language.Tag{language.French, language.English}
	matcher   = language.NewMatcher(supported)

	spellers = map[string]func(int) string{
		"fr": ntw.IntegerToFrFr,
		"en": ntw.IntegerToEnUs,
	}
)

// ParseLanguage maps a language code or tag ("fr", "fr-CA", "en_US") to a
// supported base language.
func ParseLanguage(code string) (string, error) {
	if code == "" {
		return DefaultLanguage, nil
	}
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", code, err)
	}
	_, idx, conf := matcher.Match(tag)
	if conf < language.High {
		return "", fmt.Errorf("unsupported language %q (supported: fr, en)", code)
	}
	base, _ := supported[idx].Base()
	return base.String(), nil
}

type rule struct {
	Replacement
	re *regexp.Regexp
}

// Normalizer rewrites text before synthesis. It is safe for concurrent use;
// replacements may be swapped while other goroutines normalize.
type Normalizer struct {
	lang  string
	spell func(int) string

	mu    sync.RWMutex
	rules []rule

	logger *log.Logger
}

// NewNormalizer creates a normalizer that spells numbers in lang.
func NewNormalizer(lang string, replacements []Replacement, logger *log.Logger) (*Normalizer, error) {
	base, err := ParseLanguage(lang)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	n := &Normalizer{
		lang:   base,
		spell:  spellers[base],
		logger: logger.WithPrefix("text"),
	}
	n.SetReplacements(replacements)
	return n, nil
}

// Language returns the base language numbers are spelled in.
func (n *Normalizer) Language() string {
	return n.lang
}

// SetReplacements replaces the rule set. Entries with an empty From are
// ignored.
func (n *Normalizer) SetReplacements(replacements []Replacement) {
	rules := make([]rule, 0, len(replacements))
	for _, r := range replacements {
		if r.From == "" {
			continue
		}
		rules = append(rules, rule{
			Replacement: r,
			re:          regexp.MustCompile(`(?i)` + regexp.QuoteMeta(r.From)),
		})
	}

	n.mu.Lock()
	n.rules = rules
	n.mu.Unlock()
}

// Replacements returns the active rule set in application order.
func (n *Normalizer) Replacements() []Replacement {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]Replacement, len(n.rules))
	for i, r := range n.rules {
		out[i] = r.Replacement
	}
	return out
}

// Normalize applies every replacement in order, then spells out each run of
// digits.
func (n *Normalizer) Normalize(s string) string {
	n.mu.RLock()
	rules := n.rules
	n.mu.RUnlock()

	out := s
	for _, r := range rules {
		n.logger.Debug("Replacing", "from", r.From, "to", r.To)
		out = r.re.ReplaceAllLiteralString(out, r.To)
	}

	out = digitRun.ReplaceAllStringFunc(out, n.spellRun)

	n.logger.Debug("Normalized text", "text", s, "normalized", out)
	return out
}

func (n *Normalizer) spellRun(digits string) string {
	if v, err := strconv.ParseInt(digits, 10, 64); err == nil && v <= maxSpelled {
		return n.spell(int(v))
	}

	words := make([]string, 0, len(digits))
	for _, d := range digits {
		words = append(words, n.spell(int(d-'0')))
	}
	return strings.Join(words, " ")
}

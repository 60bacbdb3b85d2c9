package slug

import (
	"crypto/rand"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Option configures Make.
type Option func(*config)

type config struct {
	replace   map[string]string
	separator string
	strip     string
	maxLength int
	suffix    int
	lowercase bool
}

// MaxLength limits the slug to n runes, cutting at a separator when possible.
func MaxLength(n int) Option {
	return func(c *config) { c.maxLength = n }
}

// Separator sets the string placed between words. Default "-".
func Separator(sep string) Option {
	return func(c *config) { c.separator = sep }
}

// Lowercase controls case folding. Default true.
func Lowercase(on bool) Option {
	return func(c *config) { c.lowercase = on }
}

// StripChars removes the given characters before slugification.
func StripChars(chars string) Option {
	return func(c *config) { c.strip = chars }
}

// CustomReplace applies replacements before slugification.
func CustomReplace(m map[string]string) Option {
	return func(c *config) { c.replace = m }
}

// WithSuffix appends a random alphanumeric suffix of n characters.
func WithSuffix(n int) Option {
	return func(c *config) { c.suffix = n }
}

// Make converts s into a slug.
func Make(s string, opts ...Option) string {
	cfg := &config{separator: "-", lowercase: true}
	for _, opt := range opts {
		opt(cfg)
	}

	for from, to := range cfg.replace {
		s = strings.ReplaceAll(s, from, " "+to+" ")
	}
	if cfg.strip != "" {
		s = strings.Map(func(r rune) rune {
			if strings.ContainsRune(cfg.strip, r) {
				return -1
			}
			return r
		}, s)
	}

	s = fold(s)
	if cfg.lowercase {
		s = strings.ToLower(s)
	}

	words := strings.FieldsFunc(s, func(r rune) bool {
		return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	out := strings.Join(words, cfg.separator)

	if cfg.maxLength > 0 {
		out = truncate(out, cfg.separator, cfg.maxLength)
	}
	if cfg.suffix > 0 {
		if out != "" {
			out += cfg.separator
		}
		out += randomSuffix(cfg.suffix)
	}
	return out
}

// fold strips combining marks and maps a few letters NFD leaves intact.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.NewReplacer("ß", "ss", "Æ", "AE", "æ", "ae", "Ø", "O", "ø", "o", "Ł", "L", "ł", "l").Replace(out)
}

func truncate(s, sep string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if sep != "" && !strings.HasPrefix(string(r[n:]), sep) {
		if i := strings.LastIndex(cut, sep); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.TrimSuffix(cut, sep)
}

func randomSuffix(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = suffixAlphabet[int(b[i])%len(suffixAlphabet)]
	}
	return string(b)
}

package credentials

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Level is a password strength band.
type Level string

const (
	Weak   Level = "weak"
	Medium Level = "medium"
	Strong Level = "strong"
)

// MaxScore is the highest attainable password score.
const MaxScore = 6

// Strength is the additive score of a password across six criteria.
type Strength struct {
	Level   Level    `json:"level"`
	Score   int      `json:"score"`
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
}

type criterion struct {
	hint string
	met  func(s string, n int) bool
}

var criteria = []criterion{
	{"at least 8 characters", func(_ string, n int) bool { return n >= 8 }},
	{"at least 12 characters", func(_ string, n int) bool { return n >= 12 }},
	{"a lowercase letter", func(s string, _ int) bool { return strings.ContainsFunc(s, unicode.IsLower) }},
	{"an uppercase letter", func(s string, _ int) bool { return strings.ContainsFunc(s, unicode.IsUpper) }},
	{"a digit", func(s string, _ int) bool { return strings.ContainsFunc(s, unicode.IsDigit) }},
	{"a symbol", func(s string, _ int) bool { return strings.ContainsFunc(s, isSymbol) }},
}

func isSymbol(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// PasswordStrength scores a password 0..6 and lists the criteria it misses.
func PasswordStrength(password string) Strength {
	n := utf8.RuneCountInString(password)
	var s Strength
	for _, c := range criteria {
		if c.met(password, n) {
			s.Score++
		} else {
			s.Missing = append(s.Missing, c.hint)
		}
	}

	switch {
	case s.Score >= 5:
		s.Level = Strong
		s.Message = "Strong password"
	case s.Score >= 3:
		s.Level = Medium
		s.Message = "Medium strength"
	default:
		s.Level = Weak
		s.Message = "Weak password"
	}
	if len(s.Missing) > 0 {
		s.Message += ": add " + strings.Join(s.Missing, ", ")
	}
	return s
}

// ValidatePassword rejects empty and weak passwords and attaches the strength.
func ValidatePassword(password string) Result {
	if password == "" {
		return invalid("Password is required")
	}
	s := PasswordStrength(password)
	return Result{IsValid: s.Level != Weak, Message: s.Message, Strength: &s}
}

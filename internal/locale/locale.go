// Package locale defines the interface languages the app speaks.
package locale

import (
	"errors"
	"strings"
)

// Language is one of the supported UI and analysis languages.
type Language string

const (
	EN Language = "EN"
	FR Language = "FR"
	AR Language = "AR"
)

// ErrUnknownLanguage is returned by Parse for unsupported codes.
var ErrUnknownLanguage = errors.New("locale: unknown language")

// Parse accepts a language code in any case.
func Parse(s string) (Language, error) {
	switch Language(strings.ToUpper(strings.TrimSpace(s))) {
	case EN:
		return EN, nil
	case FR:
		return FR, nil
	case AR:
		return AR, nil
	}
	return "", ErrUnknownLanguage
}

// Valid reports whether l is supported.
func (l Language) Valid() bool {
	switch l {
	case EN, FR, AR:
		return true
	}
	return false
}

// Next cycles EN -> FR -> AR -> EN.
func (l Language) Next() Language {
	switch l {
	case EN:
		return FR
	case FR:
		return AR
	default:
		return EN
	}
}

// Name is the English name passed to analysis prompts.
func (l Language) Name() string {
	switch l {
	case FR:
		return "French"
	case AR:
		return "Arabic"
	default:
		return "English"
	}
}

// RTL reports whether the language is written right to left.
func (l Language) RTL() bool {
	return l == AR
}

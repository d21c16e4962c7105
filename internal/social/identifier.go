package social

import (
	"errors"
	"strconv"
	"strings"
)

const (
	errMessageEmptyIdentifier   = "identifier cannot be empty"
	errMessageInvalidAlias      = "identifier contains characters outside the allowed alias alphabet"
	errMessageIdentifierNotSet  = "identifier holds no value"
	aliasAllowedExtraCharacters = "._"
)

var (
	// ErrEmptyIdentifier indicates a blank identifier was supplied.
	ErrEmptyIdentifier = errors.New(errMessageEmptyIdentifier)
	// ErrInvalidAlias indicates the alias contains disallowed characters.
	ErrInvalidAlias = errors.New(errMessageInvalidAlias)
	// ErrIdentifierNotSet indicates the zero-value identifier was used.
	ErrIdentifierNotSet = errors.New(errMessageIdentifierNotSet)
)

// Identifier is a tagged variant over the two external identifier shapes:
// a numeric user ID or a short-address alias. It is resolved into a
// canonical numeric ID once at the boundary before entering the pipeline.
type Identifier struct {
	numericID int64
	alias     string
}

// NumericIdentifier wraps an already-canonical numeric user ID.
func NumericIdentifier(userID int64) Identifier {
	return Identifier{numericID: userID}
}

// ParseIdentifier interprets raw input as a numeric ID when it consists of
// digits only and as an alias otherwise.
func ParseIdentifier(raw string) (Identifier, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Identifier{}, ErrEmptyIdentifier
	}
	if numericID, parseErr := strconv.ParseInt(trimmed, 10, 64); parseErr == nil && numericID > 0 {
		return Identifier{numericID: numericID}, nil
	}
	for _, character := range trimmed {
		if isAliasCharacter(character) {
			continue
		}
		return Identifier{}, ErrInvalidAlias
	}
	return Identifier{alias: trimmed}, nil
}

// IsNumeric reports whether the identifier carries a numeric ID.
func (identifier Identifier) IsNumeric() bool {
	return identifier.numericID > 0
}

// IsAlias reports whether the identifier carries an alias.
func (identifier Identifier) IsAlias() bool {
	return identifier.alias != ""
}

// Numeric returns the numeric user ID; zero when the identifier is an alias.
func (identifier Identifier) Numeric() int64 {
	return identifier.numericID
}

// Alias returns the alias; empty when the identifier is numeric.
func (identifier Identifier) Alias() string {
	return identifier.alias
}

// String renders the identifier the way the provider expects it on the wire.
func (identifier Identifier) String() string {
	if identifier.IsNumeric() {
		return strconv.FormatInt(identifier.numericID, 10)
	}
	return identifier.alias
}

func isAliasCharacter(character rune) bool {
	switch {
	case character >= 'a' && character <= 'z':
		return true
	case character >= 'A' && character <= 'Z':
		return true
	case character >= '0' && character <= '9':
		return true
	default:
		return strings.ContainsRune(aliasAllowedExtraCharacters, character)
	}
}

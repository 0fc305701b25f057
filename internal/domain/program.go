package domain

import (
	"slices"
	"strings"
)

// LoanProgram identifies the loan product a file is underwritten against.
type LoanProgram string

// LoanProgram values. New programs register their own checklist extras.
const (
	ProgramConventional LoanProgram = "conventional"
	ProgramFHA          LoanProgram = "fha"
	ProgramVA           LoanProgram = "va"
	ProgramUSDA         LoanProgram = "usda"
	ProgramNonQM        LoanProgram = "non-qm"
)

// validPrograms stores supported loan-program values.
var validPrograms = []LoanProgram{
	ProgramConventional,
	ProgramFHA,
	ProgramVA,
	ProgramUSDA,
	ProgramNonQM,
}

// Programs returns the supported loan programs.
func Programs() []LoanProgram {
	return slices.Clone(validPrograms)
}

// NormalizeProgram canonicalizes one loan-program value.
func NormalizeProgram(program LoanProgram) LoanProgram {
	return LoanProgram(strings.TrimSpace(strings.ToLower(string(program))))
}

// IsValidProgram reports whether a loan program is supported.
func IsValidProgram(program LoanProgram) bool {
	return slices.Contains(validPrograms, NormalizeProgram(program))
}

// ParseProgram validates one loan-program value, defaulting empty to conventional.
func ParseProgram(raw string) (LoanProgram, error) {
	program := NormalizeProgram(LoanProgram(raw))
	if program == "" {
		return ProgramConventional, nil
	}
	if !IsValidProgram(program) {
		return "", ErrInvalidProgram
	}
	return program, nil
}

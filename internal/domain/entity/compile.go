package entity

import (
	"encoding/json"
	"regexp"
	"strings"
)

const DefaultContractName = "GeneratedContract"

var contractNamePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

type CompileRequest struct {
	ContractCode string `json:"contractCode"`
	ContractName string `json:"contractName,omitempty"`
}

// Normalize fills the default contract name and rejects names that are not
// Solidity identifiers, so a name can be used as a path component.
func (r *CompileRequest) Normalize() error {
	if strings.TrimSpace(r.ContractCode) == "" {
		return ErrEmptySource
	}
	if r.ContractName == "" {
		r.ContractName = DefaultContractName
	}
	if !ValidContractName(r.ContractName) {
		return ErrInvalidContractName
	}
	return nil
}

func ValidContractName(name string) bool {
	return contractNamePattern.MatchString(name)
}

type CompileResult struct {
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
	ContractName string          `json:"contractName"`
}

// Artifact is the subset of a Hardhat build artifact the service reads.
type Artifact struct {
	Format       string          `json:"_format"`
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

var (
	declarationPattern = regexp.MustCompile(`\b(?:abstract\s+)?(contract|library|interface)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	// comments and string literals
	noisePattern = regexp.MustCompile(`(?s)//[^\n]*|/\*.*?\*/|"(?:[^"\\\n]|\\.)*"|'(?:[^'\\\n]|\\.)*'`)
)

// StripCommentsAndStrings blanks comments and string literals in source.
// Newlines are kept so line numbers still match the original.
func StripCommentsAndStrings(source string) string {
	return noisePattern.ReplaceAllStringFunc(source, func(s string) string {
		return strings.Repeat("\n", strings.Count(s, "\n"))
	})
}

// DeclaredNames lists the contract, library and interface names declared in
// source, in order of appearance.
func DeclaredNames(source string) []string {
	var names []string
	for _, m := range declarationPattern.FindAllStringSubmatch(StripCommentsAndStrings(source), -1) {
		names = append(names, m[2])
	}
	return names
}

// DetectContractName returns the first contract declared in source, or ""
// when there is none.
func DetectContractName(source string) string {
	for _, m := range declarationPattern.FindAllStringSubmatch(StripCommentsAndStrings(source), -1) {
		if m[1] == "contract" {
			return m[2]
		}
	}
	return ""
}

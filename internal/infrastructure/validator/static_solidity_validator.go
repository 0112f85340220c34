package validator

import (
	"fmt"
	"regexp"
	"strings"

	"contractforge/internal/domain/entity"
)

type AnalysisResult struct {
	Passed   bool
	Errors   []*entity.ValidationError
	Warnings []*entity.ValidationError
}

// Report renders the errors one per line, the way compiler diagnostics read.
func (r *AnalysisResult) Report() string {
	var b strings.Builder
	for _, e := range r.Errors {
		if e.Line > 0 {
			fmt.Fprintf(&b, "%s:%d: %s\n", e.File, e.Line, e.Message)
		} else {
			fmt.Fprintf(&b, "%s: %s\n", e.File, e.Message)
		}
	}
	return strings.TrimSpace(b.String())
}

type Analyzer interface {
	Analyze(source, contractName string) *AnalysisResult
}

var (
	pragmaPattern = regexp.MustCompile(`\bpragma\s+solidity\s+[^;]+;`)
	spdxPattern   = regexp.MustCompile(`SPDX-License-Identifier:\s*\S+`)
)

// SolidityAnalyzer performs cheap checks before the external compiler runs.
type SolidityAnalyzer struct{}

func NewSolidityAnalyzer() *SolidityAnalyzer {
	return &SolidityAnalyzer{}
}

func (a *SolidityAnalyzer) Analyze(source, contractName string) *AnalysisResult {
	result := &AnalysisResult{Passed: true}
	file := contractName + ".sol"

	addError := func(line int, msg string) {
		result.Passed = false
		result.Errors = append(result.Errors, &entity.ValidationError{
			File: file, Message: msg, Line: line, Severity: entity.SeverityError,
		})
	}
	addWarning := func(line int, msg string) {
		result.Warnings = append(result.Warnings, &entity.ValidationError{
			File: file, Message: msg, Line: line, Severity: entity.SeverityWarning,
		})
	}

	if strings.TrimSpace(source) == "" {
		addError(0, "source is empty")
		return result
	}

	if !spdxPattern.MatchString(source) {
		addWarning(1, "SPDX license identifier not provided in source file")
	}
	code := entity.StripCommentsAndStrings(source)
	if !pragmaPattern.MatchString(code) {
		addWarning(1, "source file does not specify required compiler version")
	}

	names := entity.DeclaredNames(source)
	declared := false
	for _, n := range names {
		if n == contractName {
			declared = true
			break
		}
	}
	if !declared {
		if len(names) == 0 {
			addError(0, "no contract, library or interface declared")
		} else {
			addError(0, fmt.Sprintf("%s is not declared in source (found: %s)", contractName, strings.Join(names, ", ")))
		}
	}

	if line, msg := checkBraces(code); msg != "" {
		addError(line, msg)
	}

	return result
}

// checkBraces expects code with comments and strings already blanked.
func checkBraces(code string) (int, string) {
	depth, line := 0, 1
	for _, r := range code {
		switch r {
		case '\n':
			line++
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return line, "unexpected closing brace"
			}
		}
	}
	if depth > 0 {
		return line, fmt.Sprintf("%d unclosed brace(s) at end of file", depth)
	}
	return 0, ""
}

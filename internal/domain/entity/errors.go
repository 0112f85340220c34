package entity

import "errors"

var (
	ErrEmptyPrompt            = errors.New("prompt is required")
	ErrEmptySource            = errors.New("contract code is required")
	ErrInvalidContractName    = errors.New("contract name must be a valid Solidity identifier")
	ErrGeneratorNotConfigured = errors.New("OpenAI API key not configured")
	ErrArtifactNotFound       = errors.New("compiled artifact not found")
	ErrCatalogueNotConfigured = errors.New("contract catalogue not configured")
)

// ValidationError is a finding of the static source checks.
type ValidationError struct {
	File     string `json:"file"`
	Message  string `json:"message"`
	Line     int    `json:"line,omitempty"`
	Severity string `json:"severity"`
}

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

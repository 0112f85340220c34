package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contractforge/internal/domain/entity"
	"contractforge/internal/domain/repository"
)

type GenerationUsecase interface {
	Generate(ctx context.Context, prompt string) (*entity.GenerationResult, error)
	Configured() bool
}

var _ GenerationUsecase = (*GenerationService)(nil)

type GenerationService struct {
	llm    repository.LLMGenerator
	logger *slog.Logger
}

// NewGenerationService accepts a nil generator; Generate then reports
// entity.ErrGeneratorNotConfigured.
func NewGenerationService(llm repository.LLMGenerator, logger *slog.Logger) *GenerationService {
	return &GenerationService{llm: llm, logger: logger}
}

func (s *GenerationService) Configured() bool {
	return s.llm != nil
}

// Generate asks the model for contract source and then, in a second
// independent call, for an explanation of that source. Neither call is
// retried.
func (s *GenerationService) Generate(ctx context.Context, prompt string) (*entity.GenerationResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, entity.ErrEmptyPrompt
	}
	if s.llm == nil {
		return nil, entity.ErrGeneratorNotConfigured
	}

	start := time.Now()
	s.logger.Info("generating contract", "prompt_len", len(prompt))

	source, err := s.llm.GenerateContract(ctx, prompt)
	if err != nil {
		s.logger.Error("contract generation failed", "err", err)
		return nil, err
	}

	explanation, err := s.llm.ExplainContract(ctx, source)
	if err != nil {
		s.logger.Error("contract explanation failed", "err", err)
		return nil, fmt.Errorf("explain generated contract: %w", err)
	}

	s.logger.Info("contract generated", "source_len", len(source), "duration", time.Since(start))
	return &entity.GenerationResult{
		Contract:     source,
		Explanation:  explanation,
		Prompt:       prompt,
		ContractName: entity.DetectContractName(source),
	}, nil
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"contractforge/internal/domain/entity"
	"contractforge/internal/domain/repository"
)

type ContractUsecase interface {
	ListContracts(ctx context.Context) ([]*entity.Contract, error)
	CreateContract(ctx context.Context, name, source string, abi json.RawMessage, bytecode string) (*entity.Contract, error)
	Configured() bool
}

var _ ContractUsecase = (*ContractService)(nil)

type ContractService struct {
	repo repository.ContractRepository
}

// NewContractService accepts a nil repository: listing then yields an empty
// catalogue and creation reports entity.ErrCatalogueNotConfigured.
func NewContractService(repo repository.ContractRepository) *ContractService {
	return &ContractService{repo: repo}
}

func (s *ContractService) Configured() bool {
	return s.repo != nil
}

func (s *ContractService) ListContracts(ctx context.Context) ([]*entity.Contract, error) {
	if s.repo == nil {
		return []*entity.Contract{}, nil
	}
	contracts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	if contracts == nil {
		contracts = []*entity.Contract{}
	}
	return contracts, nil
}

func (s *ContractService) CreateContract(ctx context.Context, name, source string, abi json.RawMessage, bytecode string) (*entity.Contract, error) {
	if s.repo == nil {
		return nil, entity.ErrCatalogueNotConfigured
	}
	if strings.TrimSpace(source) == "" {
		return nil, entity.ErrEmptySource
	}
	if name == "" {
		name = entity.DetectContractName(source)
	}
	if name == "" {
		name = entity.DefaultContractName
	}

	contract := entity.NewContract(name, source)
	contract.ABI = abi
	contract.Bytecode = bytecode

	if err := s.repo.Save(ctx, contract); err != nil {
		return nil, fmt.Errorf("save contract %s: %w", name, err)
	}
	return contract, nil
}

package repository

import (
	"context"

	"contractforge/internal/domain/entity"
)

type ContractRepository interface {
	Save(ctx context.Context, contract *entity.Contract) error
	List(ctx context.Context) ([]*entity.Contract, error)
}

package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Contract is an entry of the contract catalogue.
type Contract struct {
	ID        string          `json:"id" bson:"id"`
	Name      string          `json:"name" bson:"name"`
	Source    string          `json:"source" bson:"source"`
	ABI       json.RawMessage `json:"abi,omitempty" bson:"abi,omitempty"`
	Bytecode  string          `json:"bytecode,omitempty" bson:"bytecode,omitempty"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
}

func NewContract(name, source string) *Contract {
	return &Contract{
		ID:        uuid.New().String(),
		Name:      name,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
}

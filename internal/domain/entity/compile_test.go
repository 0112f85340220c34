package entity

import (
	"errors"
	"reflect"
	"testing"
)

func TestDeclaredNames(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []string
	}{
		{"one line", "pragma solidity ^0.8.20; contract GeneratedContract {}", []string{"GeneratedContract"}},
		{"several", "interface IToken {}\nlibrary Math {}\nabstract contract Base {}\ncontract Token is Base {}", []string{"IToken", "Math", "Base", "Token"}},
		{"comments and strings", "/* contract Hidden {} */\n// contract Gone\nstring constant s = \"contract Fake\";\ncontract Real {}", []string{"Real"}},
		{"identifier suffix", "uint256 mycontract = 1; contract A {}", []string{"A"}},
		{"none", "pragma solidity ^0.8.0;", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeclaredNames(tt.source); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DeclaredNames() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectContractName(t *testing.T) {
	if got := DetectContractName("interface I {} library L {} contract Vault {}"); got != "Vault" {
		t.Errorf("expected Vault, got %q", got)
	}
	if got := DetectContractName("library L {}"); got != "" {
		t.Errorf("expected no contract, got %q", got)
	}
}

func TestCompileRequestNormalize(t *testing.T) {
	req := CompileRequest{ContractCode: "contract GeneratedContract {}"}
	if err := req.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if req.ContractName != DefaultContractName {
		t.Errorf("expected default name, got %q", req.ContractName)
	}

	blank := CompileRequest{ContractCode: " \n\t"}
	if err := blank.Normalize(); !errors.Is(err, ErrEmptySource) {
		t.Errorf("expected ErrEmptySource, got %v", err)
	}

	for _, name := range []string{"../x", "a/b", "1Token", "Token.sol", "Tok en"} {
		req := CompileRequest{ContractCode: "x", ContractName: name}
		if err := req.Normalize(); !errors.Is(err, ErrInvalidContractName) {
			t.Errorf("%q: expected ErrInvalidContractName, got %v", name, err)
		}
	}
}

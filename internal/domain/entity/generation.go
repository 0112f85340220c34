package entity

type GenerationRequest struct {
	Prompt string `json:"prompt"`
}

type GenerationResult struct {
	Contract     string `json:"contract"`
	Explanation  string `json:"explanation"`
	Prompt       string `json:"prompt"`
	ContractName string `json:"contractName,omitempty"`
}

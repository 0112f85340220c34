package entity

import "fmt"

type Prompt struct {
	ID   string
	Text string
}

const solidityPrompt = "You are an expert Solidity developer. Write production-quality smart contracts.\nRules:\n\n1. Start every file with an SPDX-License-Identifier comment and a pragma solidity ^0.8.x line.\n2. Document every contract, function and event with NatSpec comments.\n3. Protect state-changing administrative functions with access control (Ownable or role checks).\n4. Prefer custom errors, immutable/constant variables and tight storage packing to keep gas low.\n5. Emit events for every state change a client may care about.\n6. Output only the Solidity code. No prose, no explanations, no markdown fences."

const explainPrompt = "You are a smart contract auditor. Explain contracts in plain language for a non-technical reader: what the contract does, who can call what, and any risks worth knowing."

var SolidityPrompt = Prompt{
	ID:   "solidity",
	Text: solidityPrompt,
}

var ExplainPrompt = Prompt{
	ID:   "explain",
	Text: explainPrompt,
}

func ExplainRequest(source string) string {
	return fmt.Sprintf("Explain what this smart contract does in simple terms:\n\n%s", source)
}

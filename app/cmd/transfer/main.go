package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/joho/godotenv"

	"contractforge/internal/chain"
)

const defaultAmount = "0.001"

var (
	flagset        = flag.NewFlagSet("", flag.ExitOnError)
	connectFlag    = flagset.String("s", "http://localhost:8545", "endpoint of Ethereum RPC server")
	keyFileFlag    = flagset.String("keyfile", "", "file containing the key used for signing (or $TRANSFER_KEYFILE)")
	passphraseFlag = flagset.String("passphrase", "", "passphrase used for decrypting the key (or $TRANSFER_PASSPHRASE)")
	amountFlag     = flagset.String("amount", defaultAmount, "amount of ETH sent to the signer's own address")
	timeoutFlag    = flagset.Duration("t", 0, "optional timeout of the whole transfer, 0 waits forever")
)

func init() {
	flagset.Usage = func() {
		fmt.Println("Usage: transfer [flags]")
		fmt.Println()
		fmt.Println("Sends a small amount of ETH from the signing account to itself")
		fmt.Println("and waits until the transaction is mined.")
		fmt.Println()
		fmt.Println("Flags:")
		flagset.PrintDefaults()
	}
}

func main() {
	err, showUsage := run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if showUsage {
		flagset.Usage()
	}
	if err != nil || showUsage {
		os.Exit(1)
	}
}

func run() (err error, showUsage bool) {
	_ = godotenv.Load()
	flagset.Parse(os.Args[1:])
	if flagset.NArg() != 0 {
		return fmt.Errorf("unexpected arguments: %v", flagset.Args()), true
	}

	keyFile := *keyFileFlag
	if keyFile == "" {
		keyFile = os.Getenv("TRANSFER_KEYFILE")
	}
	passphrase := *passphraseFlag
	if passphrase == "" {
		passphrase = os.Getenv("TRANSFER_PASSPHRASE")
	}
	if keyFile == "" {
		return errors.New("no signing key: set -keyfile or TRANSFER_KEYFILE"), true
	}

	amount, err := chain.ParseEthAsWei(*amountFlag)
	if err != nil {
		return fmt.Errorf("failed to decode amount: %w", err), true
	}

	signer, err := chain.LoadSigner(keyFile, passphrase)
	if err != nil {
		return err, false
	}

	ctx, cancel := newContext()
	defer cancel()

	rpcClient, err := rpc.DialContext(ctx, *connectFlag)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", *connectFlag, err), false
	}
	client := ethclient.NewClient(rpcClient)
	defer client.Close()

	fmt.Printf("Sending %s ETH from %s to itself\n", chain.FormatWeiAsEth(amount), signer.Address.Hex())

	tx, receipt, err := chain.SelfTransfer(ctx, client, signer, amount)
	if tx != nil {
		fmt.Printf("Transaction hash: %s\n", tx.Hash().Hex())
	}
	if errors.Is(err, chain.ErrNullReceipt) {
		fmt.Println("Transaction receipt is null")
		return err, false
	}
	if err != nil {
		return err, false
	}

	fmt.Printf("Transaction mined in block %s\n", receipt.BlockNumber)
	return nil, false
}

func newContext() (context.Context, context.CancelFunc) {
	if *timeoutFlag == 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), *timeoutFlag)
}

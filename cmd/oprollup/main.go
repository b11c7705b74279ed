// Command oprollup drives a local settlement instance through a complete
// deterministic scenario: users deposit, an operator submits a batch under
// bond, a challenger optionally proves fraud, and the block is either slashed
// or finalized; after finalization a withdrawal is processed. The final state
// and the full event log are printed once the scenario completes.
//
// Usage:
//
//	oprollup simulate [--config settlement.yaml] [--challenge] [--verbosity N]
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/oprollup/oprollup/core/types"
	"github.com/oprollup/oprollup/crypto"
	"github.com/oprollup/oprollup/log"
	"github.com/oprollup/oprollup/merkle"
	"github.com/oprollup/oprollup/rollup"
	"github.com/oprollup/oprollup/state"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0"
var version = "v0.1.0-dev"

func main() {
	root := &cobra.Command{
		Use:     "oprollup",
		Short:   "optimistic rollup settlement core",
		Version: version,
	}
	root.AddCommand(simulateCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "oprollup:", err)
		os.Exit(1)
	}
}

func simulateCmd() *cobra.Command {
	var (
		configPath string
		challenge  bool
		verbosity  int
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "run a deposit/submit/finalize scenario against a local settlement",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			log.SetDefault(log.New(slogLevel(verbosity)))
			return runSimulation(cfg, challenge)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "settlement config YAML (optional)")
	cmd.Flags().BoolVar(&challenge, "challenge", false, "have a challenger slash the submitted block")
	cmd.Flags().IntVar(&verbosity, "verbosity", 3, "log level 0-5")
	return cmd
}

func slogLevel(verbosity int) slog.Level {
	switch {
	case verbosity >= 5:
		return slog.LevelDebug
	case verbosity >= 3:
		return slog.LevelInfo
	case verbosity >= 2:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func runSimulation(cfg rollup.SettlementConfig, challenge bool) error {
	ledger := rollup.NewMemoryLedger()
	clock := rollup.NewBlockClock(1_000_000, 1_700_000_000)
	settlement, err := rollup.NewSettlement(cfg, clock, ledger)
	if err != nil {
		return err
	}

	oneUnit := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18))

	operator := types.HexToAddress("0x0000000000000000000000000000000000000a11")
	challenger := types.HexToAddress("0x0000000000000000000000000000000000000b22")
	sender := types.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient := types.HexToAddress("0x2222222222222222222222222222222222222222")

	ledger.Mint(operator, new(uint256.Int).Mul(oneUnit, uint256.NewInt(10)))
	ledger.Mint(sender, new(uint256.Int).Mul(oneUnit, uint256.NewInt(10)))

	// Deposit.
	deposit := new(uint256.Int).Mul(oneUnit, uint256.NewInt(5))
	if err := settlement.Deposit(sender, deposit); err != nil {
		return err
	}

	// Off-chain pre-state: sender holds the deposit, recipient is empty.
	addrs := []types.Address{sender, recipient}
	if recipient.Less(sender) {
		addrs = []types.Address{recipient, sender}
	}
	pre := map[types.Address]types.Account{
		sender:    types.NewAccount(deposit, 0),
		recipient: types.NewAccount(nil, 0),
	}
	preRoot, err := computeRoot(addrs, pre)
	if err != nil {
		return err
	}

	// The operator executes one transfer off chain.
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	tx := &types.Transaction{
		From:   sender,
		To:     recipient,
		Amount: new(uint256.Int).Set(oneUnit),
		Nonce:  0,
		Fee:    new(uint256.Int),
	}
	tx.Signature, err = crypto.Sign(tx.PrefixedSigningHash(), key)
	if err != nil {
		return err
	}

	post := map[types.Address]types.Account{
		sender:    types.NewAccount(new(uint256.Int).Sub(deposit, oneUnit), 1),
		recipient: types.NewAccount(oneUnit, 0),
	}
	postRoot, err := computeRoot(addrs, post)
	if err != nil {
		return err
	}
	claimedRoot := postRoot
	if challenge {
		// A dishonest operator credits the recipient twice.
		bogus := map[types.Address]types.Account{
			sender:    post[sender],
			recipient: types.NewAccount(new(uint256.Int).Mul(oneUnit, uint256.NewInt(2)), 0),
		}
		claimedRoot, err = computeRoot(addrs, bogus)
		if err != nil {
			return err
		}
		post = bogus
	}

	txRoot, err := merkle.ComputeRoot([]types.Hash{tx.MerkleLeaf()})
	if err != nil {
		return err
	}
	blockNum, err := settlement.SubmitRollupBlock(operator, claimedRoot, txRoot, []*types.Transaction{tx}, cfg.OperatorBond)
	if err != nil {
		return err
	}

	if challenge {
		proof, err := buildFraudProof(tx, addrs, pre, post, preRoot, claimedRoot, txRoot)
		if err != nil {
			return err
		}
		result, err := settlement.ChallengeBlock(challenger, blockNum, proof)
		if err != nil {
			return err
		}
		fmt.Printf("challenge verdict: %s (correct root %s)\n", result.Kind, result.CorrectPostStateRoot)
	} else {
		clock.Advance(cfg.ChallengePeriod + 1)
		if err := settlement.FinalizeBlock(blockNum); err != nil {
			return err
		}
		withdraw := new(uint256.Int).Set(oneUnit)
		id, err := settlement.RequestWithdrawal(sender, withdraw)
		if err != nil {
			return err
		}
		if err := settlement.ProcessWithdrawal(sender, id); err != nil {
			return err
		}
	}

	root, num := settlement.GetCurrentState()
	fmt.Printf("state root %s at rollup block %d\n", root, num)
	fmt.Printf("tvl %s wei, treasury %s wei, contract balance %s wei\n",
		settlement.TotalValueLocked(), settlement.Treasury(), ledger.ContractBalance())
	for i, ev := range settlement.Events() {
		fmt.Printf("event[%d] %s block=%d amount=%s\n", i, ev.Type, ev.BlockNumber, ev.Amount)
	}
	return nil
}

// computeRoot commits the given accounts in the fixed address order.
func computeRoot(addrs []types.Address, accounts map[types.Address]types.Account) (types.Hash, error) {
	data := make([]types.Account, len(addrs))
	for i, addr := range addrs {
		data[i] = accounts[addr]
	}
	return state.ComputeStateRoot(addrs, data)
}

// buildFraudProof assembles the challenger's witness for the single
// transaction of the simulated batch.
func buildFraudProof(
	tx *types.Transaction,
	addrs []types.Address,
	pre, post map[types.Address]types.Account,
	preRoot, claimedRoot, txRoot types.Hash,
) (*rollup.FraudProof, error) {
	preData := make([]types.Account, len(addrs))
	postData := make([]types.Account, len(addrs))
	for i, addr := range addrs {
		preData[i] = pre[addr]
		postData[i] = post[addr]
	}

	fromPre, err := state.GenerateAccountProof(tx.From, addrs, preData, preRoot)
	if err != nil {
		return nil, err
	}
	toPre, err := state.GenerateAccountProof(tx.To, addrs, preData, preRoot)
	if err != nil {
		return nil, err
	}
	fromPost, err := state.GenerateAccountProof(tx.From, addrs, postData, claimedRoot)
	if err != nil {
		return nil, err
	}
	toPost, err := state.GenerateAccountProof(tx.To, addrs, postData, claimedRoot)
	if err != nil {
		return nil, err
	}
	txProof, err := merkle.GenerateProof([]types.Hash{tx.MerkleLeaf()}, 0)
	if err != nil {
		return nil, err
	}

	return &rollup.FraudProof{
		Transaction:             tx,
		PreStateRoot:            preRoot,
		ClaimedPostStateRoot:    claimedRoot,
		FromAccountProof:        fromPre,
		ToAccountProof:          toPre,
		ClaimedFromAccountProof: fromPost,
		ClaimedToAccountProof:   toPost,
		TransactionIndex:        0,
		TransactionRoot:         txRoot,
		TransactionMerkleProof:  txProof,
	}, nil
}

// settlement.go implements the on-chain settlement state machine: deposits,
// batch submission under bond, the challenge window, fraud-gated slashing,
// finalization, and withdrawals bridged to the host ledger.
//
// Every public operation runs to completion with exclusive access to the
// aggregate and is all-or-nothing: on any precondition failure or outbound
// transfer failure the operation leaves no observable state change.
// Operations that move native value out commit their effects before the
// transfer and restore them if the transfer fails.
package rollup

import (
	"errors"
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"github.com/oprollup/oprollup/core/types"
	"github.com/oprollup/oprollup/crypto"
	"github.com/oprollup/oprollup/log"
	"github.com/oprollup/oprollup/merkle"
	"github.com/oprollup/oprollup/metrics"
	"github.com/oprollup/oprollup/state"
)

// Settlement errors. The messages for challenged blocks and unfinalized
// withdrawal sources match the revert strings at the ABI boundary.
var (
	ErrNilHost            = errors.New("rollup: nil host")
	ErrNilLedger          = errors.New("rollup: nil ledger bridge")
	ErrReentrantCall      = errors.New("rollup: reentrant call")
	ErrZeroDeposit        = errors.New("rollup: deposit value must be positive")
	ErrBondTooSmall       = errors.New("rollup: insufficient operator bond")
	ErrZeroStateRoot      = errors.New("rollup: state root must be non-zero")
	ErrZeroTxRoot         = errors.New("rollup: transaction root must be non-zero")
	ErrEmptyBatch         = errors.New("rollup: batch must contain transactions")
	ErrTxRootMismatch     = errors.New("rollup: transaction root does not match batch")
	ErrBlockNotFound      = errors.New("rollup: rollup block not found")
	ErrBlockChallenged    = errors.New("rollup: Block was challenged")
	ErrBlockFinalized     = errors.New("rollup: block already finalized")
	ErrWindowOpen         = errors.New("rollup: challenge period not elapsed")
	ErrWindowClosed       = errors.New("rollup: challenge window expired")
	ErrProofNotForBlock   = errors.New("rollup: proof does not bind to block")
	ErrChallengeRejected  = errors.New("rollup: proof does not demonstrate fraud")
	ErrZeroWithdrawal     = errors.New("rollup: withdrawal amount must be positive")
	ErrInsufficientL2     = errors.New("rollup: insufficient layer-2 balance")
	ErrWithdrawalNotFound = errors.New("rollup: withdrawal request not found")
	ErrWithdrawalDone     = errors.New("rollup: withdrawal already processed")
	ErrNotRequestOwner    = errors.New("rollup: caller does not own withdrawal request")
	ErrSourceNotFinal     = errors.New("rollup: Rollup block not finalized")
	ErrRequestExists      = errors.New("rollup: withdrawal request id already exists")
)

// RollupBlock is one proposed batch. A block is created pending and
// transitions at most once, to challenged or to finalized, never both.
type RollupBlock struct {
	// StateRoot is the post-batch state root the operator claims.
	StateRoot types.Hash

	// TxRoot is the Merkle root over the batch's transaction leaves.
	TxRoot types.Hash

	// HostBlockNumber is the host block at submission; the challenge window
	// is measured from it.
	HostBlockNumber uint64

	// Timestamp is the host timestamp at submission.
	Timestamp uint64

	// Operator is the proposer whose bond backs the block.
	Operator types.Address

	// Bond is the native value escrowed with this submission.
	Bond *uint256.Int

	// Challenged marks a successful fraud challenge. Terminal.
	Challenged bool

	// Finalized marks expiry of the challenge window with the bond
	// returned. Terminal.
	Finalized bool
}

// WithdrawalRequest is a user's claim to move layer-2 balance back to the
// host ledger. It becomes processable once the referenced rollup block
// finalizes.
type WithdrawalRequest struct {
	// ID is the request key.
	ID types.Hash

	// User is the requester; only they may process it.
	User types.Address

	// Amount is the value withdrawn, already debited from the user's
	// layer-2 balance.
	Amount *uint256.Int

	// RollupBlockNumber is the block the withdrawal is bound to.
	RollupBlockNumber uint64

	// Processed marks completion.
	Processed bool
}

// Settlement is the on-chain aggregate: the single writer over the account
// mirror, block map, bonds, and withdrawal queue.
type Settlement struct {
	mu      sync.Mutex
	entered bool

	cfg    SettlementConfig
	host   Host
	ledger LedgerBridge
	logger *log.Logger
	stats  *metrics.Collector

	currentStateRoot types.Hash
	blockNumber      uint64
	totalValueLocked *uint256.Int
	treasury         *uint256.Int

	accounts    map[types.Address]*types.Account
	blocks      map[uint64]*RollupBlock
	bonds       map[types.Address]*uint256.Int
	withdrawals map[types.Hash]*WithdrawalRequest

	events []Event
}

// NewSettlement creates a settlement aggregate at the genesis state root.
func NewSettlement(cfg SettlementConfig, host Host, ledger LedgerBridge) (*Settlement, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if host == nil {
		return nil, ErrNilHost
	}
	if ledger == nil {
		return nil, ErrNilLedger
	}
	return &Settlement{
		cfg:              cfg,
		host:             host,
		ledger:           ledger,
		logger:           log.Default().Module("settlement"),
		stats:            metrics.NewCollector(),
		currentStateRoot: state.GenesisRoot(),
		totalValueLocked: new(uint256.Int),
		treasury:         new(uint256.Int),
		accounts:         make(map[types.Address]*types.Account),
		blocks:           make(map[uint64]*RollupBlock),
		bonds:            make(map[types.Address]*uint256.Int),
		withdrawals:      make(map[types.Hash]*WithdrawalRequest),
	}, nil
}

// SetLogger replaces the aggregate's logger.
func (s *Settlement) SetLogger(l *log.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l != nil {
		s.logger = l
	}
}

// Metrics returns the aggregate's metrics collector.
func (s *Settlement) Metrics() *metrics.Collector {
	return s.stats
}

// Deposit credits value to the caller's layer-2 balance. The value is pulled
// from the caller on the host ledger before any state changes.
func (s *Settlement) Deposit(caller types.Address, value *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	release, err := s.enter()
	if err != nil {
		return err
	}
	defer release()

	if value == nil || value.IsZero() {
		return ErrZeroDeposit
	}
	if err := s.ledger.Credit(caller, value); err != nil {
		return err
	}

	acct := s.accountLocked(caller)
	acct.Balance.Add(acct.Balance, value)
	s.totalValueLocked.Add(s.totalValueLocked, value)

	s.appendEvent(Event{
		Type:   EventDeposit,
		User:   caller,
		Amount: new(uint256.Int).Set(value),
	})
	s.stats.Inc("settlement.deposits")
	s.stats.SetGauge("settlement.tvl", weiGauge(s.totalValueLocked))
	s.logger.Info("deposit", "user", caller, "value", value)
	return nil
}

// SubmitRollupBlock records a new proposed batch under bond and advances the
// current state root optimistically. The transaction root must be the Merkle
// root over the batch's transaction leaves. Returns the new rollup block
// number.
func (s *Settlement) SubmitRollupBlock(operator types.Address, newStateRoot, txRoot types.Hash, txs []*types.Transaction, value *uint256.Int) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value == nil || value.Lt(s.cfg.OperatorBond) {
		return 0, ErrBondTooSmall
	}
	if newStateRoot.IsZero() {
		return 0, ErrZeroStateRoot
	}
	if txRoot.IsZero() {
		return 0, ErrZeroTxRoot
	}
	if len(txs) == 0 {
		return 0, ErrEmptyBatch
	}
	leaves := make([]types.Hash, len(txs))
	for i, tx := range txs {
		leaves[i] = tx.MerkleLeaf()
	}
	computed, err := merkle.ComputeRoot(leaves)
	if err != nil {
		return 0, err
	}
	if computed != txRoot {
		return 0, ErrTxRootMismatch
	}

	if err := s.ledger.Credit(operator, value); err != nil {
		return 0, err
	}

	s.blockNumber++
	num := s.blockNumber
	s.blocks[num] = &RollupBlock{
		StateRoot:       newStateRoot,
		TxRoot:          txRoot,
		HostBlockNumber: s.host.BlockNumber(),
		Timestamp:       s.host.Timestamp(),
		Operator:        operator,
		Bond:            new(uint256.Int).Set(value),
	}
	s.bondLocked(operator).Add(s.bondLocked(operator), value)
	s.currentStateRoot = newStateRoot

	s.appendEvent(Event{
		Type:        EventRollupBlockSubmitted,
		Operator:    operator,
		BlockNumber: num,
		StateRoot:   newStateRoot,
		TxRoot:      txRoot,
		Amount:      new(uint256.Int).Set(value),
	})
	s.stats.Inc("settlement.blocks.submitted")
	s.logger.Info("rollup block submitted",
		"block", num, "operator", operator, "stateRoot", newStateRoot)
	return num, nil
}

// ChallengeBlock submits a fraud proof against a pending block inside the
// challenge window. Slashing is gated on the verifier: a proof that does not
// demonstrate fraud rejects the challenge with no state change. On success
// the operator's entire outstanding bond is slashed, half is paid to the
// challenger, the remainder accrues to the treasury, and the current state
// root rolls back past the invalidated proposal.
func (s *Settlement) ChallengeBlock(challenger types.Address, blockNum uint64, proof *FraudProof) (FraudResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	release, err := s.enter()
	if err != nil {
		return FraudResult{}, err
	}
	defer release()

	block, ok := s.blocks[blockNum]
	if !ok {
		return FraudResult{}, ErrBlockNotFound
	}
	if block.Challenged {
		return FraudResult{}, ErrBlockChallenged
	}
	if block.Finalized {
		return FraudResult{}, ErrBlockFinalized
	}
	if s.host.BlockNumber() > block.HostBlockNumber+s.cfg.ChallengePeriod {
		return FraudResult{}, ErrWindowClosed
	}
	if proof == nil {
		return FraudResult{}, ErrFraudProofNil
	}
	if proof.ClaimedPostStateRoot != block.StateRoot || proof.TransactionRoot != block.TxRoot {
		return FraudResult{}, ErrProofNotForBlock
	}

	result, err := VerifyFraudProof(proof)
	if err != nil {
		return FraudResult{}, err
	}
	if !result.IsFraud {
		return result, ErrChallengeRejected
	}

	// Effects before the reward transfer.
	operator := block.Operator
	bond := s.bondLocked(operator)
	slashed := new(uint256.Int).Set(bond)
	reward := new(uint256.Int).Rsh(slashed, 1)
	retained := new(uint256.Int).Sub(slashed, reward)

	prevRoot := s.currentStateRoot
	block.Challenged = true
	bond.Clear()
	s.treasury.Add(s.treasury, retained)
	s.currentStateRoot = s.lastHonestRootLocked()

	if !reward.IsZero() {
		if err := s.ledger.Transfer(challenger, reward); err != nil {
			block.Challenged = false
			bond.Set(slashed)
			s.treasury.Sub(s.treasury, retained)
			s.currentStateRoot = prevRoot
			return FraudResult{}, err
		}
	}

	s.appendEvent(Event{
		Type:        EventChallenge,
		User:        challenger,
		Operator:    operator,
		BlockNumber: blockNum,
		Amount:      reward,
	})
	s.stats.Inc("settlement.blocks.challenged")
	s.logger.Info("block challenged",
		"block", blockNum, "challenger", challenger, "kind", result.Kind, "slashed", slashed)
	return result, nil
}

// FinalizeBlock marks a pending block final once the challenge window has
// elapsed and returns its bond to the operator.
func (s *Settlement) FinalizeBlock(blockNum uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	release, err := s.enter()
	if err != nil {
		return err
	}
	defer release()

	block, ok := s.blocks[blockNum]
	if !ok {
		return ErrBlockNotFound
	}
	if block.Finalized {
		return ErrBlockFinalized
	}
	if block.Challenged {
		return ErrBlockChallenged
	}
	if s.host.BlockNumber() <= block.HostBlockNumber+s.cfg.ChallengePeriod {
		return ErrWindowOpen
	}

	// The operator's bond may already be gone if another of their blocks
	// was successfully challenged; refund what remains, capped at this
	// block's bond.
	operator := block.Operator
	bond := s.bondLocked(operator)
	refund := new(uint256.Int).Set(block.Bond)
	if bond.Lt(refund) {
		refund.Set(bond)
	}

	block.Finalized = true
	bond.Sub(bond, refund)

	if !refund.IsZero() {
		if err := s.ledger.Transfer(operator, refund); err != nil {
			block.Finalized = false
			bond.Add(bond, refund)
			return err
		}
	}

	s.appendEvent(Event{
		Type:        EventBlockFinalized,
		Operator:    operator,
		BlockNumber: blockNum,
		Amount:      refund,
	})
	s.stats.Inc("settlement.blocks.finalized")
	s.logger.Info("block finalized", "block", blockNum, "operator", operator)
	return nil
}

// RequestWithdrawal debits the caller's layer-2 balance and queues a
// withdrawal bound to the current rollup block. The value is released by
// ProcessWithdrawal once that block finalizes.
func (s *Settlement) RequestWithdrawal(caller types.Address, amount *uint256.Int) (types.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount == nil || amount.IsZero() {
		return types.Hash{}, ErrZeroWithdrawal
	}
	acct := s.accountLocked(caller)
	if acct.Balance.Lt(amount) {
		return types.Hash{}, ErrInsufficientL2
	}

	id := withdrawalID(caller, amount, s.blockNumber, s.host.Timestamp())
	if _, exists := s.withdrawals[id]; exists {
		return types.Hash{}, ErrRequestExists
	}

	acct.Balance.Sub(acct.Balance, amount)
	s.withdrawals[id] = &WithdrawalRequest{
		ID:                id,
		User:              caller,
		Amount:            new(uint256.Int).Set(amount),
		RollupBlockNumber: s.blockNumber,
	}

	s.appendEvent(Event{
		Type:      EventWithdrawalRequested,
		User:      caller,
		Amount:    new(uint256.Int).Set(amount),
		RequestID: id,
	})
	s.logger.Info("withdrawal requested", "user", caller, "amount", amount, "id", id)
	return id, nil
}

// ProcessWithdrawal releases a queued withdrawal to its owner once the
// referenced rollup block has finalized.
func (s *Settlement) ProcessWithdrawal(caller types.Address, id types.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	release, err := s.enter()
	if err != nil {
		return err
	}
	defer release()

	req, ok := s.withdrawals[id]
	if !ok {
		return ErrWithdrawalNotFound
	}
	if req.Processed {
		return ErrWithdrawalDone
	}
	if req.User != caller {
		return ErrNotRequestOwner
	}
	block, ok := s.blocks[req.RollupBlockNumber]
	if !ok || !block.Finalized {
		return ErrSourceNotFinal
	}

	req.Processed = true
	s.totalValueLocked.Sub(s.totalValueLocked, req.Amount)

	if err := s.ledger.Transfer(caller, req.Amount); err != nil {
		req.Processed = false
		s.totalValueLocked.Add(s.totalValueLocked, req.Amount)
		return err
	}

	s.appendEvent(Event{
		Type:      EventWithdrawalProcessed,
		User:      caller,
		Amount:    new(uint256.Int).Set(req.Amount),
		RequestID: id,
	})
	s.stats.Inc("settlement.withdrawals.processed")
	s.stats.SetGauge("settlement.tvl", weiGauge(s.totalValueLocked))
	s.logger.Info("withdrawal processed", "user", caller, "amount", req.Amount, "id", id)
	return nil
}

// --- Read-only queries ---

// GetCurrentState returns the current state root and rollup block number.
func (s *Settlement) GetCurrentState() (types.Hash, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentStateRoot, s.blockNumber
}

// GetBalance returns the layer-2 balance mirrored on chain for addr.
func (s *Settlement) GetBalance(addr types.Address) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[addr]; ok {
		return new(uint256.Int).Set(acct.Balance)
	}
	return new(uint256.Int)
}

// GetRollupBlock returns a copy of the block, or false if it does not exist.
func (s *Settlement) GetRollupBlock(blockNum uint64) (RollupBlock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	block, ok := s.blocks[blockNum]
	if !ok {
		return RollupBlock{}, false
	}
	cp := *block
	cp.Bond = new(uint256.Int).Set(block.Bond)
	return cp, true
}

// GetOperatorBond returns the operator's outstanding escrowed bond.
func (s *Settlement) GetOperatorBond(operator types.Address) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bond, ok := s.bonds[operator]; ok {
		return new(uint256.Int).Set(bond)
	}
	return new(uint256.Int)
}

// GetWithdrawalRequest returns a copy of the request, or false if unknown.
func (s *Settlement) GetWithdrawalRequest(id types.Hash) (WithdrawalRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.withdrawals[id]
	if !ok {
		return WithdrawalRequest{}, false
	}
	cp := *req
	cp.Amount = new(uint256.Int).Set(req.Amount)
	return cp, true
}

// CanChallenge reports whether the block is pending and inside the window.
func (s *Settlement) CanChallenge(blockNum uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	block, ok := s.blocks[blockNum]
	if !ok || block.Challenged || block.Finalized {
		return false
	}
	return s.host.BlockNumber() <= block.HostBlockNumber+s.cfg.ChallengePeriod
}

// CanFinalize reports whether the block is pending and outside the window.
func (s *Settlement) CanFinalize(blockNum uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	block, ok := s.blocks[blockNum]
	if !ok || block.Challenged || block.Finalized {
		return false
	}
	return s.host.BlockNumber() > block.HostBlockNumber+s.cfg.ChallengePeriod
}

// CanProcessWithdrawal reports whether the request exists, is unprocessed,
// and its source block has finalized.
func (s *Settlement) CanProcessWithdrawal(id types.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.withdrawals[id]
	if !ok || req.Processed {
		return false
	}
	block, ok := s.blocks[req.RollupBlockNumber]
	return ok && block.Finalized
}

// TotalValueLocked returns deposits minus processed withdrawals.
func (s *Settlement) TotalValueLocked() *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(uint256.Int).Set(s.totalValueLocked)
}

// Treasury returns the accumulated non-reward half of slashed bonds.
func (s *Settlement) Treasury() *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(uint256.Int).Set(s.treasury)
}

// PendingBlocks returns the numbers of blocks still inside the challenge
// window, ascending.
func (s *Settlement) PendingBlocks() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	host := s.host.BlockNumber()
	var pending []uint64
	for num := uint64(1); num <= s.blockNumber; num++ {
		block := s.blocks[num]
		if block.Challenged || block.Finalized {
			continue
		}
		if host <= block.HostBlockNumber+s.cfg.ChallengePeriod {
			pending = append(pending, num)
		}
	}
	return pending
}

// WithdrawalRequestsFor returns copies of all requests owned by user.
func (s *Settlement) WithdrawalRequestsFor(user types.Address) []WithdrawalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []WithdrawalRequest
	for _, req := range s.withdrawals {
		if req.User != user {
			continue
		}
		cp := *req
		cp.Amount = new(uint256.Int).Set(req.Amount)
		out = append(out, cp)
	}
	return out
}

// Events returns a copy of the full event log.
func (s *Settlement) Events() []Event {
	return s.EventsSince(0)
}

// EventsSince returns a copy of the event log starting at index i.
func (s *Settlement) EventsSince(i int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.events) {
		return nil
	}
	out := make([]Event, len(s.events)-i)
	copy(out, s.events[i:])
	return out
}

// --- Internal helpers ---

// enter acquires the reentrancy guard; the returned release must run on all
// exit paths. Callers hold s.mu.
func (s *Settlement) enter() (func(), error) {
	if s.entered {
		return nil, ErrReentrantCall
	}
	s.entered = true
	return func() { s.entered = false }, nil
}

// accountLocked returns the mutable mirror account for addr, creating an
// empty one on first touch. Callers hold s.mu.
func (s *Settlement) accountLocked(addr types.Address) *types.Account {
	acct, ok := s.accounts[addr]
	if !ok {
		fresh := types.NewAccount(nil, 0)
		acct = &fresh
		s.accounts[addr] = acct
	}
	return acct
}

// bondLocked returns the mutable bond entry for operator. Callers hold s.mu.
func (s *Settlement) bondLocked(operator types.Address) *uint256.Int {
	bond, ok := s.bonds[operator]
	if !ok {
		bond = new(uint256.Int)
		s.bonds[operator] = bond
	}
	return bond
}

// lastHonestRootLocked returns the state root of the highest-numbered
// unchallenged block, or the genesis root if every block is challenged.
// Callers hold s.mu.
func (s *Settlement) lastHonestRootLocked() types.Hash {
	for num := s.blockNumber; num >= 1; num-- {
		if block := s.blocks[num]; !block.Challenged {
			return block.StateRoot
		}
	}
	return state.GenesisRoot()
}

// appendEvent records an event. Callers hold s.mu.
func (s *Settlement) appendEvent(ev Event) {
	s.events = append(s.events, ev)
}

// weiGauge converts a wei amount to float64 for metrics reporting.
func weiGauge(v *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}

// withdrawalID derives the request key:
// Keccak256(user || amount || rollupBlockNumber || timestamp) with the
// numeric fields as 32-byte big-endian words.
func withdrawalID(user types.Address, amount *uint256.Int, blockNum, timestamp uint64) types.Hash {
	amt := amount.Bytes32()
	num := new(uint256.Int).SetUint64(blockNum).Bytes32()
	ts := new(uint256.Int).SetUint64(timestamp).Bytes32()
	return crypto.Keccak256Hash(user[:], amt[:], num[:], ts[:])
}

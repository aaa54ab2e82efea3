package orchestrator

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	solana "github.com/gagliardetto/solana-go"

	"github.com/aptgetinfo/anchor-escrow/internal/wallet"
)

var (
	// ErrBusy is returned when an operation is already running on the session.
	ErrBusy = errors.New("session busy: an operation is already in flight")
	// ErrNotProvisioned is returned by escrow operations before ProvisionAccounts completed.
	ErrNotProvisioned = errors.New("session not provisioned: fund accounts and mint tokens first")
	// ErrNoEscrow is returned by exchange/cancel before any escrow was initialized in the session.
	ErrNoEscrow = errors.New("no escrow initialized in this session")
	// ErrEscrowOpen is returned when re-provisioning would orphan an escrow that is still open.
	ErrEscrowOpen = errors.New("escrow still open: exchange or cancel it before provisioning again")
)

// Accounts are the mints and token accounts created during provisioning.
type Accounts struct {
	MintA             solana.PublicKey
	MintB             solana.PublicKey
	InitializerTokenA solana.PublicKey
	InitializerTokenB solana.PublicKey
	TakerTokenA       solana.PublicKey
	TakerTokenB       solana.PublicKey
}

func (a Accounts) complete() bool {
	for _, k := range []solana.PublicKey{a.MintA, a.MintB, a.InitializerTokenA, a.InitializerTokenB, a.TakerTokenA, a.TakerTokenB} {
		if k.IsZero() {
			return false
		}
	}
	return true
}

// EscrowState tracks the addresses derived and created by the last initialize.
type EscrowState struct {
	Address           solana.PublicKey
	Vault             solana.PublicKey
	VaultBump         uint8
	VaultAuthority    solana.PublicKey
	InitializerAmount uint64
	TakerAmount       uint64
	// Open is false once exchange or cancel confirmed in this session.
	Open bool
}

// Snapshot is a read-only copy of a session's public state.
type Snapshot struct {
	ID                string
	Wallet            solana.PublicKey
	Payer             solana.PublicKey
	MintAuthority     solana.PublicKey
	Taker             solana.PublicKey
	Accounts          Accounts
	Escrow            EscrowState
	MintedInitializer uint64
	MintedTaker       uint64
	Completed         []string
}

// Session owns the ephemeral identities and every address derived for one interactive user.
// Nothing here is persisted; a fresh session starts from scratch.
type Session struct {
	ID     string
	Wallet wallet.Wallet

	payer         solana.PrivateKey
	mintAuthority solana.PrivateKey
	taker         solana.PrivateKey

	busy atomic.Bool

	mu                sync.Mutex
	accounts          Accounts
	escrow            EscrowState
	mintedInitializer uint64
	mintedTaker       uint64
	completed         []string
}

// NewSession generates the payer, mint authority and taker identities for w.
func NewSession(w wallet.Wallet) (*Session, error) {
	if w == nil {
		return nil, errors.New("wallet not connected")
	}
	keys := make([]solana.PrivateKey, 3)
	for i := range keys {
		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
		keys[i] = key
	}
	id := keys[0].PublicKey().String()[:8]
	return &Session{
		ID:            id,
		Wallet:        w,
		payer:         keys[0],
		mintAuthority: keys[1],
		taker:         keys[2],
	}, nil
}

// Taker is the counterparty identity that signs exchange.
func (s *Session) Taker() solana.PublicKey { return s.taker.PublicKey() }

// Provisioned reports whether all mints and token accounts exist.
func (s *Session) Provisioned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts.complete()
}

// Snapshot copies the session's public state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	completed := make([]string, len(s.completed))
	copy(completed, s.completed)
	return Snapshot{
		ID:                s.ID,
		Wallet:            s.Wallet.PublicKey(),
		Payer:             s.payer.PublicKey(),
		MintAuthority:     s.mintAuthority.PublicKey(),
		Taker:             s.taker.PublicKey(),
		Accounts:          s.accounts,
		Escrow:            s.escrow,
		MintedInitializer: s.mintedInitializer,
		MintedTaker:       s.mintedTaker,
		Completed:         completed,
	}
}

func (s *Session) begin() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (s *Session) end() { s.busy.Store(false) }

func (s *Session) done(step string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.completed {
		if name == step {
			return true
		}
	}
	return false
}

func (s *Session) markDone(step string) {
	s.mu.Lock()
	s.completed = append(s.completed, step)
	s.mu.Unlock()
}

// restartProvisioning forgets a provisioning run that finished at finalStep so the next
// run creates fresh mints and accounts with the new amounts. A run that stopped early is
// kept as is and resumes.
func (s *Session) restartProvisioning(finalStep string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	finished := false
	for _, name := range s.completed {
		if name == finalStep {
			finished = true
			break
		}
	}
	if !finished {
		return nil
	}
	if s.escrow.Open {
		return ErrEscrowOpen
	}
	s.completed = nil
	s.accounts = Accounts{}
	s.escrow = EscrowState{}
	s.mintedInitializer = 0
	s.mintedTaker = 0
	return nil
}

func (s *Session) update(fn func(*Session)) {
	s.mu.Lock()
	fn(s)
	s.mu.Unlock()
}

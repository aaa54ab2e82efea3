package orchestrator

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"maps"

	solana "github.com/gagliardetto/solana-go"

	"github.com/aptgetinfo/anchor-escrow/internal/chain"
	"github.com/aptgetinfo/anchor-escrow/internal/escrow"
)

// fakeChain plays the token program and the escrow program against an in-memory ledger.
type fakeChain struct {
	program  solana.PublicKey
	balances map[solana.PublicKey]uint64
	escrows  map[solana.PublicKey][]byte
	owners   map[solana.PublicKey]solana.PublicKey
	requests []chain.Request
	airdrops []solana.PublicKey
	calls    int
	fail     map[int]error
}

func newFakeChain(program solana.PublicKey) *fakeChain {
	return &fakeChain{
		program:  program,
		balances: map[solana.PublicKey]uint64{},
		escrows:  map[solana.PublicKey][]byte{},
		owners:   map[solana.PublicKey]solana.PublicKey{},
		fail:     map[int]error{},
	}
}

func (f *fakeChain) next() error {
	idx := f.calls
	f.calls++
	if err, ok := f.fail[idx]; ok {
		delete(f.fail, idx)
		return err
	}
	return nil
}

func (f *fakeChain) Airdrop(_ context.Context, account solana.PublicKey, _ uint64) (solana.Signature, error) {
	if err := f.next(); err != nil {
		return solana.Signature{}, err
	}
	f.airdrops = append(f.airdrops, account)
	return solana.Signature{byte(f.calls)}, nil
}

func (f *fakeChain) Submit(_ context.Context, req chain.Request) (solana.Signature, error) {
	if err := f.next(); err != nil {
		return solana.Signature{}, err
	}
	if err := checkSigners(req); err != nil {
		return solana.Signature{}, err
	}
	f.requests = append(f.requests, req)
	balances, escrows, owners := maps.Clone(f.balances), maps.Clone(f.escrows), maps.Clone(f.owners)
	for _, ix := range req.Instructions {
		if err := f.apply(ix); err != nil {
			// a failed transaction leaves no trace
			f.balances, f.escrows, f.owners = balances, escrows, owners
			return solana.Signature{byte(f.calls)}, err
		}
	}
	return solana.Signature{byte(f.calls)}, nil
}

func (f *fakeChain) lastRequest() chain.Request {
	return f.requests[len(f.requests)-1]
}

func (f *fakeChain) RentExempt(_ context.Context, size uint64) (uint64, error) {
	return size * 6960, nil
}

func (f *fakeChain) TokenBalance(_ context.Context, account solana.PublicKey) (uint64, error) {
	bal, ok := f.balances[account]
	if !ok {
		return 0, fmt.Errorf("%s: %w", account, chain.ErrAccountNotFound)
	}
	return bal, nil
}

func (f *fakeChain) AccountData(_ context.Context, account solana.PublicKey) ([]byte, error) {
	data, ok := f.escrows[account]
	if !ok {
		return nil, fmt.Errorf("%s: %w", account, chain.ErrAccountNotFound)
	}
	return data, nil
}

func checkSigners(req chain.Request) error {
	have := map[solana.PublicKey]bool{}
	for _, k := range req.Signers {
		have[k.PublicKey()] = true
	}
	if req.Wallet != nil {
		have[req.Wallet.PublicKey()] = true
	}
	if !have[req.FeePayer] {
		return fmt.Errorf("fee payer %s did not sign", req.FeePayer)
	}
	for _, ix := range req.Instructions {
		for _, meta := range ix.Accounts() {
			if meta.IsSigner && !have[meta.PublicKey] {
				return fmt.Errorf("missing signature for %s", meta.PublicKey)
			}
		}
	}
	return nil
}

func programError(code float64) error {
	return &chain.TransactionError{Err: map[string]any{
		"InstructionError": []any{float64(0), map[string]any{"Custom": code}},
	}}
}

func (f *fakeChain) apply(ix solana.Instruction) error {
	data, err := ix.Data()
	if err != nil {
		return err
	}
	accts := ix.Accounts()
	switch {
	case ix.ProgramID().Equals(solana.SystemProgramID) && len(accts) == 2 && accts[1].IsSigner:
		// create account: u32 type, u64 lamports, u64 space, owner
		account := accts[1].PublicKey
		if _, taken := f.owners[account]; taken {
			return programError(0) // SystemError::AccountAlreadyInUse
		}
		owner := solana.PublicKeyFromBytes(data[20:52])
		f.owners[account] = owner
		if owner.Equals(solana.TokenProgramID) {
			f.balances[account] = 0
		}
	case ix.ProgramID().Equals(solana.TokenProgramID) && data[0] == 7:
		f.balances[accts[1].PublicKey] += binary.LittleEndian.Uint64(data[1:9])
	case ix.ProgramID().Equals(f.program):
		return f.applyEscrow(data, accts)
	}
	return nil
}

func (f *fakeChain) applyEscrow(data []byte, accts []*solana.AccountMeta) error {
	switch {
	case bytes.HasPrefix(data, escrow.InitializeDiscriminator[:]):
		amount := binary.LittleEndian.Uint64(data[9:17])
		want := binary.LittleEndian.Uint64(data[17:25])
		if amount == 0 || want == 0 {
			return programError(2003)
		}
		deposit, vault, record := accts[3].PublicKey, accts[2].PublicKey, accts[5].PublicKey
		if owner, ok := f.owners[record]; !ok || !owner.Equals(f.program) {
			return programError(3007) // escrow account not allocated to the program
		}
		if _, ok := f.escrows[record]; ok {
			return programError(2) // #[account(zero)] on an initialized record
		}
		if f.balances[deposit] < amount {
			return programError(2003) // deposit account amount constraint
		}
		f.balances[deposit] -= amount
		f.balances[vault] = amount
		f.escrows[record] = encodeEscrow(escrow.EscrowAccount{
			InitializerKey:                 accts[0].PublicKey,
			InitializerDepositTokenAccount: deposit,
			InitializerReceiveTokenAccount: accts[4].PublicKey,
			InitializerAmount:              amount,
			TakerAmount:                    want,
		})
	case bytes.HasPrefix(data, escrow.ExchangeDiscriminator[:]):
		record := accts[6].PublicKey
		raw, ok := f.escrows[record]
		if !ok {
			return programError(3012)
		}
		rec, err := escrow.DecodeEscrowAccount(raw)
		if err != nil {
			return err
		}
		takerDeposit, takerReceive, initReceive, vault := accts[1].PublicKey, accts[2].PublicKey, accts[4].PublicKey, accts[7].PublicKey
		if f.balances[takerDeposit] < rec.TakerAmount {
			return programError(1)
		}
		f.balances[takerDeposit] -= rec.TakerAmount
		f.balances[initReceive] += rec.TakerAmount
		f.balances[takerReceive] += f.balances[vault]
		delete(f.balances, vault)
		delete(f.escrows, record)
		delete(f.owners, record)
	case bytes.HasPrefix(data, escrow.CancelDiscriminator[:]):
		vault, deposit, record := accts[1].PublicKey, accts[3].PublicKey, accts[4].PublicKey
		if _, ok := f.escrows[record]; !ok {
			return programError(3012)
		}
		f.balances[deposit] += f.balances[vault]
		delete(f.balances, vault)
		delete(f.escrows, record)
		delete(f.owners, record)
	default:
		return programError(101)
	}
	return nil
}

func encodeEscrow(acct escrow.EscrowAccount) []byte {
	buf := new(bytes.Buffer)
	buf.Write(escrow.EscrowAccountDiscriminator[:])
	buf.Write(acct.InitializerKey[:])
	buf.Write(acct.InitializerDepositTokenAccount[:])
	buf.Write(acct.InitializerReceiveTokenAccount[:])
	_ = binary.Write(buf, binary.LittleEndian, acct.InitializerAmount)
	_ = binary.Write(buf, binary.LittleEndian, acct.TakerAmount)
	return buf.Bytes()
}

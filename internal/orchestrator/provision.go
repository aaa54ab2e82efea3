package orchestrator

import (
	"context"
	"errors"
	"fmt"

	solana "github.com/gagliardetto/solana-go"

	"github.com/aptgetinfo/anchor-escrow/internal/chain"
	"github.com/aptgetinfo/anchor-escrow/internal/token"
)

// ErrBalanceMismatch is returned by the final provisioning step when a minted balance is off.
var ErrBalanceMismatch = errors.New("balance mismatch after minting")

const stepVerifyBalances = "verify-balances"

// ProvisionAccounts funds the session identities, creates mints A and B with their four
// token accounts and mints the starting balances. A failure stops the pipeline; nothing
// is rolled back, and calling again resumes from the failed step. Calling again after a
// complete run starts over with new mints, accounts and amounts.
func (o *Orchestrator) ProvisionAccounts(ctx context.Context, s *Session, plan Plan) (err error) {
	const operation = "provision"
	defer func() { o.observe(operation, err) }()
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	if err := s.restartProvisioning(stepVerifyBalances); err != nil {
		return err
	}

	payer := s.payer.PublicKey()
	user := s.Wallet.PublicKey()
	taker := s.taker.PublicKey()

	steps := []step{
		{name: "airdrop-payer", once: true, run: func(ctx context.Context) (solana.Signature, error) {
			return o.chain.Airdrop(ctx, payer, plan.AirdropLamports)
		}},
		{name: "fund-accounts", once: true, run: func(ctx context.Context) (solana.Signature, error) {
			return o.chain.Submit(ctx, chain.Request{
				Instructions: []solana.Instruction{
					token.Transfer(plan.FundLamports, payer, user),
					token.Transfer(plan.FundLamports, payer, taker),
				},
				FeePayer: payer,
				Signers:  []solana.PrivateKey{s.payer},
			})
		}},
		{name: "create-mint-a", once: true, run: o.createMint(s, func(a *Accounts) *solana.PublicKey { return &a.MintA })},
		{name: "create-mint-b", once: true, run: o.createMint(s, func(a *Accounts) *solana.PublicKey { return &a.MintB })},
		{name: "create-initializer-account-a", once: true, run: o.createTokenAccount(s, user,
			func(a *Accounts) (solana.PublicKey, *solana.PublicKey) { return a.MintA, &a.InitializerTokenA })},
		{name: "create-taker-account-a", once: true, run: o.createTokenAccount(s, taker,
			func(a *Accounts) (solana.PublicKey, *solana.PublicKey) { return a.MintA, &a.TakerTokenA })},
		{name: "create-initializer-account-b", once: true, run: o.createTokenAccount(s, user,
			func(a *Accounts) (solana.PublicKey, *solana.PublicKey) { return a.MintB, &a.InitializerTokenB })},
		{name: "create-taker-account-b", once: true, run: o.createTokenAccount(s, taker,
			func(a *Accounts) (solana.PublicKey, *solana.PublicKey) { return a.MintB, &a.TakerTokenB })},
		{name: "mint-initializer-a", once: true, run: o.mintTo(s, plan.InitializerAmount,
			func(a Accounts) (solana.PublicKey, solana.PublicKey) { return a.MintA, a.InitializerTokenA },
			func(s *Session) { s.mintedInitializer = plan.InitializerAmount })},
		{name: "mint-taker-b", once: true, run: o.mintTo(s, plan.TakerAmount,
			func(a Accounts) (solana.PublicKey, solana.PublicKey) { return a.MintB, a.TakerTokenB },
			func(s *Session) { s.mintedTaker = plan.TakerAmount })},
		{name: stepVerifyBalances, once: true, run: func(ctx context.Context) (solana.Signature, error) {
			return solana.Signature{}, o.verifyBalances(ctx, s)
		}},
	}
	return o.execute(ctx, s, operation, steps)
}

func (o *Orchestrator) createMint(s *Session, target func(*Accounts) *solana.PublicKey) func(context.Context) (solana.Signature, error) {
	return func(ctx context.Context) (solana.Signature, error) {
		rent, err := o.chain.RentExempt(ctx, token.MintSize)
		if err != nil {
			return solana.Signature{}, err
		}
		mintKey, err := solana.NewRandomPrivateKey()
		if err != nil {
			return solana.Signature{}, fmt.Errorf("generate mint: %w", err)
		}
		payer := s.payer.PublicKey()
		ixs, err := token.CreateMint(rent, payer, mintKey.PublicKey(), s.mintAuthority.PublicKey(), o.decimals)
		if err != nil {
			return solana.Signature{}, err
		}
		sig, err := o.chain.Submit(ctx, chain.Request{
			Instructions: ixs,
			FeePayer:     payer,
			Signers:      []solana.PrivateKey{s.payer, mintKey},
		})
		if err != nil {
			return sig, err
		}
		s.update(func(s *Session) { *target(&s.accounts) = mintKey.PublicKey() })
		return sig, nil
	}
}

func (o *Orchestrator) createTokenAccount(s *Session, owner solana.PublicKey, pick func(*Accounts) (solana.PublicKey, *solana.PublicKey)) func(context.Context) (solana.Signature, error) {
	return func(ctx context.Context) (solana.Signature, error) {
		var mint solana.PublicKey
		s.update(func(s *Session) { mint, _ = pick(&s.accounts) })
		if mint.IsZero() {
			return solana.Signature{}, errors.New("mint not created")
		}
		rent, err := o.chain.RentExempt(ctx, token.AccountSize)
		if err != nil {
			return solana.Signature{}, err
		}
		accountKey, err := solana.NewRandomPrivateKey()
		if err != nil {
			return solana.Signature{}, fmt.Errorf("generate token account: %w", err)
		}
		payer := s.payer.PublicKey()
		sig, err := o.chain.Submit(ctx, chain.Request{
			Instructions: token.CreateAccount(rent, payer, accountKey.PublicKey(), mint, owner),
			FeePayer:     payer,
			Signers:      []solana.PrivateKey{s.payer, accountKey},
		})
		if err != nil {
			return sig, err
		}
		s.update(func(s *Session) {
			_, dst := pick(&s.accounts)
			*dst = accountKey.PublicKey()
		})
		return sig, nil
	}
}

func (o *Orchestrator) mintTo(s *Session, amount uint64, pick func(Accounts) (solana.PublicKey, solana.PublicKey), record func(*Session)) func(context.Context) (solana.Signature, error) {
	return func(ctx context.Context) (solana.Signature, error) {
		var mint, dest solana.PublicKey
		s.update(func(s *Session) { mint, dest = pick(s.accounts) })
		payer := s.payer.PublicKey()
		sig, err := o.chain.Submit(ctx, chain.Request{
			Instructions: []solana.Instruction{token.MintTo(amount, mint, dest, s.mintAuthority.PublicKey())},
			FeePayer:     payer,
			Signers:      []solana.PrivateKey{s.payer, s.mintAuthority},
		})
		if err != nil {
			return sig, err
		}
		s.update(record)
		return sig, nil
	}
}

func (o *Orchestrator) verifyBalances(ctx context.Context, s *Session) error {
	snap := s.Snapshot()
	initA, err := o.chain.TokenBalance(ctx, snap.Accounts.InitializerTokenA)
	if err != nil {
		return err
	}
	takerB, err := o.chain.TokenBalance(ctx, snap.Accounts.TakerTokenB)
	if err != nil {
		return err
	}
	o.log.Info().
		Str("session", s.ID).
		Uint64("initializer_a", initA).
		Uint64("taker_b", takerB).
		Msg("starting balances")
	if initA != snap.MintedInitializer || takerB != snap.MintedTaker {
		return fmt.Errorf("%w: initializer A %d (want %d), taker B %d (want %d)",
			ErrBalanceMismatch, initA, snap.MintedInitializer, takerB, snap.MintedTaker)
	}
	return nil
}

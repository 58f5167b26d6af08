// Package rpc provides a ledger client backed by a real Solana RPC endpoint,
// for running plans against devnet, testnet, or a locally hosted validator.
// Slot manipulation is not available here: time travel only works against
// ledgers that support it, such as the in-process simulator.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	sollib "github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"github.com/solharness/solharness/account"
	"github.com/solharness/solharness/ledger"
)

// sendConfig defines the configuration for submitting transactions.
type sendConfig struct {
	// RetryAttempts determines how many times to retry RPC calls while
	// submitting. If set to 0, retries continue indefinitely until success.
	RetryAttempts uint
	// RetryDelay is the duration to wait between retry attempts.
	RetryDelay time.Duration
	// ConfirmRetryAttempts sets a fixed number of polls while waiting for a
	// submitted transaction to reach the configured commitment. It is
	// independent of RetryAttempts and not configurable by the caller.
	ConfirmRetryAttempts uint
	// Commitment specifies the desired commitment level for submissions and
	// reads.
	Commitment solrpc.CommitmentType
}

// RetryOpts returns the retry options for submitting transactions.
func (c *sendConfig) RetryOpts(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(c.RetryAttempts),
		retry.Delay(c.RetryDelay),
		retry.DelayType(retry.FixedDelay),
	}
}

// ConfirmRetryOpts returns the retry options for confirming transactions.
func (c *sendConfig) ConfirmRetryOpts(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(c.ConfirmRetryAttempts),
		retry.Delay(c.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	}
}

// sendConfigDefault provides the default configuration for submissions.
var sendConfigDefault = sendConfig{
	RetryAttempts:        1,
	RetryDelay:           50 * time.Millisecond,
	ConfirmRetryAttempts: 500,
	Commitment:           solrpc.CommitmentConfirmed,
}

// Opt is a functional option type that configures the client.
type Opt func(*sendConfig)

// WithRetry sets the number of retry attempts and the delay between retries
// for submitting transactions.
func WithRetry(attempts uint, delay time.Duration) Opt {
	return func(config *sendConfig) {
		config.RetryAttempts = attempts
		config.RetryDelay = delay
	}
}

// WithCommitment overrides the commitment level used for submissions and
// reads.
func WithCommitment(commitment solrpc.CommitmentType) Opt {
	return func(config *sendConfig) {
		config.Commitment = commitment
	}
}

// Client is a wrapper around the solana RPC client that implements the ledger
// client interface: it builds, signs, sends, and confirms transactions using
// a single payer key.
type Client struct {
	*solrpc.Client

	payerKey sollib.PrivateKey
	cfg      sendConfig
}

var _ ledger.Client = &Client{}

// New creates a new Client instance with the provided Solana RPC client and
// the payer's private key, which funds and signs every submitted transaction.
func New(client *solrpc.Client, payerKey sollib.PrivateKey, opts ...Opt) *Client {
	cfg := sendConfigDefault
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{
		Client:   client,
		payerKey: payerKey,
		cfg:      cfg,
	}
}

// Submit builds, signs, sends, and confirms a transaction carrying the
// request's instructions. It blocks until the transaction reaches the
// configured commitment and returns the signature and the slot it landed in.
// Program-level rejections surface as TransactionRejectedError; transport
// failures are retried per the retry configuration.
func (c *Client) Submit(ctx context.Context, req *ledger.TransactionRequest) (sollib.Signature, uint64, error) {
	hashRes, err := c.getLatestBlockhash(ctx, c.cfg.Commitment, c.cfg.RetryOpts(ctx)...)
	if err != nil {
		return sollib.Signature{}, 0, fmt.Errorf("error getting latest blockhash: %w", err)
	}

	tx, err := c.newTx(hashRes.Value.Blockhash, req.Instructions)
	if err != nil {
		return sollib.Signature{}, 0, fmt.Errorf("error constructing transaction: %w", err)
	}

	if _, err = tx.Sign(func(pub sollib.PublicKey) *sollib.PrivateKey {
		if pub.Equals(c.payerKey.PublicKey()) {
			return &c.payerKey
		}

		return nil
	}); err != nil {
		return sollib.Signature{}, 0, err
	}

	txsig, err := c.sendTx(ctx, tx, solrpc.TransactionOpts{
		SkipPreflight:       false, // Do not skipPreflight since it is expected to pass, preflight can help debug
		PreflightCommitment: c.cfg.Commitment,
	}, c.cfg.RetryOpts(ctx)...)
	if err != nil {
		return sollib.Signature{}, 0, err
	}

	slot, err := c.confirmTx(ctx, txsig, c.cfg.ConfirmRetryOpts(ctx)...)
	if err != nil {
		return sollib.Signature{}, 0, fmt.Errorf("error confirming transaction: %w", err)
	}

	return txsig, slot, nil
}

// GetAccount reads the account's state at the configured commitment.
func (c *Client) GetAccount(ctx context.Context, address sollib.PublicKey) (account.Snapshot, error) {
	res, err := c.GetAccountInfoWithOpts(ctx, address, &solrpc.GetAccountInfoOpts{
		Commitment: c.cfg.Commitment,
	})
	if err != nil {
		if errors.Is(err, solrpc.ErrNotFound) {
			return account.Snapshot{}, ledger.ErrAccountNotFound
		}

		return account.Snapshot{}, &ledger.LedgerError{Op: "get_account", Err: err}
	}
	if res == nil || res.Value == nil {
		return account.Snapshot{}, ledger.ErrAccountNotFound
	}

	return snapshotFromInfo(address, res), nil
}

// CurrentSlot returns the slot at the configured commitment.
func (c *Client) CurrentSlot(ctx context.Context) (uint64, error) {
	slot, err := c.GetSlot(ctx, c.cfg.Commitment)
	if err != nil {
		return 0, &ledger.LedgerError{Op: "get_slot", Err: err}
	}

	return slot, nil
}

// newTx constructs a new Solana transaction with the provided recent
// blockhash and instructions. It does not include any lookup tables, but this
// can be extended in the future if needed.
func (c *Client) newTx(
	recentBlockHash sollib.Hash,
	instructions []sollib.Instruction,
) (*sollib.Transaction, error) {
	lookupTables := sollib.TransactionAddressTables(
		map[sollib.PublicKey]sollib.PublicKeySlice{},
	)

	return sollib.NewTransaction(
		instructions,
		recentBlockHash,
		lookupTables,
		sollib.TransactionPayer(c.payerKey.PublicKey()),
	)
}

// getLatestBlockhash fetches the latest blockhash from the Solana RPC client,
// retrying if necessary based on the provided retry options.
func (c *Client) getLatestBlockhash(
	ctx context.Context, commitment solrpc.CommitmentType, retryOpts ...retry.Option,
) (*solrpc.GetLatestBlockhashResult, error) {
	var result *solrpc.GetLatestBlockhashResult

	err := retry.Do(func() error {
		var rerr error

		result, rerr = c.GetLatestBlockhash(ctx, commitment)

		return rerr
	}, retryOpts...)

	return result, err
}

// sendTx sends a transaction to the Solana network using the provided
// transaction options, retrying transport failures. Program-level failures
// reported by the RPC come back as TransactionRejectedError and are not
// retried.
func (c *Client) sendTx(
	ctx context.Context,
	tx *sollib.Transaction,
	txOpts solrpc.TransactionOpts,
	retryOpts ...retry.Option,
) (sollib.Signature, error) {
	var txsig sollib.Signature

	err := retry.Do(func() error {
		var rerr error

		txsig, rerr = c.SendTransactionWithOpts(ctx, tx, txOpts)
		if rerr != nil {
			var rpcErr *jsonrpc.RPCError
			if errors.As(rerr, &rpcErr) {
				if strings.Contains(rpcErr.Message, "Blockhash not found") {
					// this can happen when the blockhash we retrieved above is
					// not yet visible to the rpc. Given we get the blockhash
					// from the same rpc this should not happen, but we see it
					// in practice. We attempt to retry to see if it resolves.
					return fmt.Errorf("blockhash not found, retrying: %w", rerr)
				}

				// Anything else at the RPC layer is a program-level rejection
				// and will not succeed on a resend.
				return retry.Unrecoverable(&ledger.TransactionRejectedError{
					Reason: rpcErr.Message,
				})
			}

			// Not an RPC error. Should only happen when we fail to hit the
			// rpc service.
			return &ledger.LedgerError{Op: "send_transaction", Err: rerr}
		}

		return nil
	}, retryOpts...)

	return txsig, err
}

// confirmTx polls the status of a transaction signature until it reaches
// confirmed or finalized commitment, and returns the slot the transaction
// landed in.
func (c *Client) confirmTx(
	ctx context.Context,
	txsig sollib.Signature,
	retryOpts ...retry.Option,
) (uint64, error) {
	var slot uint64

	err := retry.Do(func() error {
		statusRes, err := c.GetSignatureStatuses(ctx, true, txsig)
		if err != nil {
			// Retry if we hit an error fetching the signature status.
			// Mainnet can be flakey.
			return err
		}

		if statusRes == nil || len(statusRes.Value) == 0 || statusRes.Value[0] == nil {
			return errors.New("transaction not yet visible")
		}

		status := statusRes.Value[0]
		if status.Err != nil {
			return retry.Unrecoverable(&ledger.TransactionRejectedError{
				Reason: fmt.Sprintf("%v", status.Err),
			})
		}

		switch status.ConfirmationStatus {
		case solrpc.ConfirmationStatusConfirmed, solrpc.ConfirmationStatusFinalized:
			slot = status.Slot

			return nil
		default:
			return fmt.Errorf("transaction not confirmed, status %q", status.ConfirmationStatus)
		}
	}, retryOpts...)

	return slot, err
}

// snapshotFromInfo converts an RPC account info response into a snapshot,
// stamped with the slot the read was served at.
func snapshotFromInfo(address sollib.PublicKey, res *solrpc.GetAccountInfoResult) account.Snapshot {
	return account.Snapshot{
		Address:  address,
		Lamports: res.Value.Lamports,
		Owner:    res.Value.Owner,
		Data:     res.Value.Data.GetBinary(),
		Slot:     res.Context.Slot,
	}
}

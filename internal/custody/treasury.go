package custody

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WalletProvisioner is the slice of the blockchain gateway the resolver
// needs to provision the treasury address on first use.
type WalletProvisioner interface {
	CreateWallet(ctx context.Context) (address, privateKey string, err error)
}

// KeyEncrypter seals private key material before it reaches the store.
type KeyEncrypter interface {
	Encrypt(plaintext string) (string, error)
}

// TreasuryResolver returns the single treasury account, the counterparty
// for every stake and settlement transfer. The account is identified by
// its reserved role on the row, not by any identity scheme, and its
// wallet is lazily provisioned the first time it is needed.
type TreasuryResolver struct {
	store       Store
	provisioner WalletProvisioner
	vault       KeyEncrypter
	ownerUserID string
}

// NewTreasuryResolver wires a resolver. ownerUserID is the configured
// owner reference recorded on the treasury row at provisioning time.
func NewTreasuryResolver(store Store, provisioner WalletProvisioner, vault KeyEncrypter, ownerUserID string) *TreasuryResolver {
	return &TreasuryResolver{store: store, provisioner: provisioner, vault: vault, ownerUserID: ownerUserID}
}

// Resolve returns the treasury account, creating it if absent.
func (r *TreasuryResolver) Resolve(ctx context.Context) (Account, error) {
	account, err := r.store.TreasuryAccount(ctx)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return Account{}, err
	}

	address, privateKey, err := r.provisioner.CreateWallet(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("provision treasury wallet: %w", err)
	}
	encrypted, err := r.vault.Encrypt(privateKey)
	if err != nil {
		return Account{}, fmt.Errorf("seal treasury key: %w", err)
	}

	now := time.Now().UTC()
	account = Account{
		ID:           uuid.NewString(),
		UserID:       r.ownerUserID,
		Address:      address,
		EncryptedKey: encrypted,
		Role:         RoleTreasury,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.store.CreateAccount(ctx, account); err != nil {
		// A concurrent resolver may have provisioned first; re-read.
		if existing, lookupErr := r.store.TreasuryAccount(ctx); lookupErr == nil {
			return existing, nil
		}
		return Account{}, err
	}
	return account, nil
}

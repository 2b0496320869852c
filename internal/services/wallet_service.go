package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"conti/internal/core"
	"conti/internal/ports"
)

// WalletInput is a new wallet as submitted by a user.
type WalletInput struct {
	OwnerID  string
	GroupID  string
	Name     string
	Type     string
	Balance  core.Money
	Currency string
	Color    string
	Icon     string
}

// WalletUpdate changes a wallet. Nil fields are left as they are.
type WalletUpdate struct {
	Name     *string
	Type     *string
	Balance  *core.Money
	Currency *string
	Color    *string
	Icon     *string
}

// WalletService manages a user's wallets. Wallet balances feed the
// net-worth figure of the summary report.
type WalletService struct {
	store ports.WalletStore
}

func NewWalletService(store ports.WalletStore) *WalletService {
	return &WalletService{store: store}
}

// CreateWallet stores a wallet. The type defaults to cash and the currency
// to the pivot currency.
func (s *WalletService) CreateWallet(ctx context.Context, in WalletInput) (core.Wallet, error) {
	if in.Type == "" {
		in.Type = core.WalletCash
	}
	if in.Currency = core.NormalizeCurrency(in.Currency); in.Currency == "" {
		in.Currency = core.PivotCurrency
	}
	w := core.Wallet{
		Name:      strings.TrimSpace(in.Name),
		Type:      in.Type,
		Balance:   in.Balance,
		Currency:  in.Currency,
		Color:     in.Color,
		Icon:      in.Icon,
		CreatedBy: in.OwnerID,
		GroupID:   in.GroupID,
	}
	if err := w.Validate(); err != nil {
		return core.Wallet{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	saved, err := s.store.CreateWallet(ctx, w)
	if err != nil {
		return core.Wallet{}, fmt.Errorf("save wallet: %w", err)
	}
	slog.InfoContext(ctx, "Wallet created",
		"id", saved.ID,
		"owner", in.OwnerID,
		"type", saved.Type,
		"currency", saved.Currency)
	return saved, nil
}

func (s *WalletService) ListWallets(ctx context.Context, ownerID string) ([]core.Wallet, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrMissingOwner)
	}
	return s.store.ListWallets(ctx, ownerID)
}

func (s *WalletService) ownedWallet(ctx context.Context, ownerID, id string) (core.Wallet, error) {
	wallets, err := s.ListWallets(ctx, ownerID)
	if err != nil {
		return core.Wallet{}, err
	}
	for _, w := range wallets {
		if w.ID == id {
			return w, nil
		}
	}
	return core.Wallet{}, fmt.Errorf("wallet %s: %w", id, ports.ErrNotFound)
}

// UpdateWallet applies upd to the owner's wallet and returns the result.
func (s *WalletService) UpdateWallet(ctx context.Context, ownerID, id string, upd WalletUpdate) (core.Wallet, error) {
	w, err := s.ownedWallet(ctx, ownerID, id)
	if err != nil {
		return core.Wallet{}, err
	}
	if upd.Name != nil {
		w.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Type != nil {
		w.Type = *upd.Type
	}
	if upd.Balance != nil {
		w.Balance = *upd.Balance
	}
	if upd.Currency != nil {
		w.Currency = core.NormalizeCurrency(*upd.Currency)
	}
	if upd.Color != nil {
		w.Color = *upd.Color
	}
	if upd.Icon != nil {
		w.Icon = *upd.Icon
	}
	if err := w.Validate(); err != nil {
		return core.Wallet{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.UpdateWallet(ctx, w); err != nil {
		return core.Wallet{}, fmt.Errorf("save wallet: %w", err)
	}
	slog.InfoContext(ctx, "Wallet updated",
		"id", w.ID,
		"owner", ownerID,
		"balance_cents", w.Balance.Cents)
	return w, nil
}

func (s *WalletService) DeleteWallet(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrMissingOwner)
	}
	if err := s.store.DeleteWallet(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete wallet %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Wallet deleted", "id", id, "owner", ownerID)
	return nil
}

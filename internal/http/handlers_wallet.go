package http

import (
	"net/http"

	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/services"
)

const balanceHint = "balance must be a decimal such as -12.34"

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	balance, err := core.ParseBalance(req.Balance)
	if err != nil {
		UnprocessableEntityError(balanceHint).Write(w)
		return
	}

	wallet, err := s.deps.Wallets.CreateWallet(r.Context(), services.WalletInput{
		OwnerID:  userFromContext(r.Context()),
		GroupID:  sanitizeInput(req.GroupID),
		Name:     sanitizeInput(req.Name),
		Type:     sanitizeInput(req.Type),
		Balance:  balance,
		Currency: req.Currency,
		Color:    sanitizeInput(req.Color),
		Icon:     sanitizeInput(req.Icon),
	})
	if err != nil {
		writeServiceError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/wallets/"+wallet.ID).
		Body(toWalletResponse(wallet)).
		Write(w)
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.deps.Wallets.ListWallets(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}
	out := make([]walletResponse, 0, len(wallets))
	for _, wallet := range wallets {
		out = append(out, toWalletResponse(wallet))
	}
	NewJSONResponse().Body(map[string]any{"wallets": out}).Write(w)
}

func (s *Server) handleUpdateWallet(w http.ResponseWriter, r *http.Request) {
	var req updateWalletRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	upd := services.WalletUpdate{
		Name:     sanitizedPtr(req.Name),
		Type:     sanitizedPtr(req.Type),
		Currency: req.Currency,
		Color:    sanitizedPtr(req.Color),
		Icon:     sanitizedPtr(req.Icon),
	}
	if req.Balance != nil {
		balance, err := core.ParseBalance(*req.Balance)
		if err != nil {
			UnprocessableEntityError(balanceHint).Write(w)
			return
		}
		upd.Balance = &balance
	}

	wallet, err := s.deps.Wallets.UpdateWallet(r.Context(), userFromContext(r.Context()), r.PathValue("id"), upd)
	if err != nil {
		writeServiceError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(toWalletResponse(wallet)).Write(w)
}

func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Wallets.DeleteWallet(r.Context(), userFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

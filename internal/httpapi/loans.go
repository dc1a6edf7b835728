package httpapi

import (
	"net/http"
	"strconv"

	"github.com/bookstore/services/library/internal/errs"
	"github.com/bookstore/services/library/internal/lending"
	"github.com/bookstore/services/library/internal/repo"
)

type borrowRequest struct {
	MemberID flexID `json:"member_id"`
	BookID   flexID `json:"book_id"`
	Days     *int   `json:"days"`
}

type returnRequest struct {
	LoanID flexID `json:"loan_id"`
}

func (h *Handler) listLoans(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repo.LoanFilter{
		MemberID: query.Get("member_id"),
		BookID:   query.Get("book_id"),
	}
	if raw := query.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, r, errs.Validation("active must be true or false"))
			return
		}
		filter.ActiveOnly = active
	}

	loans, err := h.repo.ListLoans(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *Handler) activeLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.repo.ListActiveLoans(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *Handler) borrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	days := lending.DefaultLoanDays
	if req.Days != nil {
		days = *req.Days
	}

	loan, err := h.engine.Borrow(r.Context(), string(req.MemberID), string(req.BookID), days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (h *Handler) returnLoan(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	loan, err := h.engine.Return(r.Context(), string(req.LoanID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

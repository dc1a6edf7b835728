package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/bookstore/services/library/internal/catalog"
	"github.com/bookstore/services/library/internal/errs"
	"github.com/bookstore/services/library/internal/events"
	"github.com/bookstore/services/library/internal/repo"
)

const totalCountHeader = "X-Total-Count"

type createBookRequest struct {
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	Category        string  `json:"category"`
	ISBN            *string `json:"isbn"`
	TotalCopies     *int    `json:"total_copies"`
	AvailableCopies *int    `json:"available_copies"`
}

type adjustCopiesRequest struct {
	TotalCopies *int `json:"total_copies"`
}

func (h *Handler) listBooks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.catalog.Search(r.Context(), r.URL.Query().Get("q"), catalog.Page{Limit: limit, Offset: offset})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set(totalCountHeader, strconv.FormatInt(result.Total, 10))
	writeJSON(w, http.StatusOK, result.Books)
}

func (h *Handler) createBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.TotalCopies == nil {
		h.writeError(w, r, errs.Validation("total_copies is required"))
		return
	}

	in := repo.BookInput{
		Title:           req.Title,
		Author:          req.Author,
		Category:        req.Category,
		TotalCopies:     *req.TotalCopies,
		AvailableCopies: req.AvailableCopies,
	}
	if req.ISBN != nil {
		in.ISBN = *req.ISBN
	}

	book, err := h.repo.CreateBook(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.events.Emit(events.BookCreated(r.Context(), book))
	writeJSON(w, http.StatusCreated, book)
}

func (h *Handler) getBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.repo.GetBook(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *Handler) adjustCopies(w http.ResponseWriter, r *http.Request) {
	var req adjustCopiesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.TotalCopies == nil {
		h.writeError(w, r, errs.Validation("total_copies is required"))
		return
	}

	book, err := h.ledger.AdjustTotalCopies(r.Context(), mux.Vars(r)["id"], *req.TotalCopies)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.events.Emit(events.BookCopiesAdjusted(r.Context(), book))
	writeJSON(w, http.StatusOK, book)
}

func (h *Handler) deleteBook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.repo.DeleteBook(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.events.Emit(events.BookDeleted(r.Context(), id))
	w.WriteHeader(http.StatusNoContent)
}

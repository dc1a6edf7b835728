package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bookstore/services/library/internal/events"
	"github.com/bookstore/services/library/internal/repo"
)

type memberRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type memberPatchRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.repo.ListMembers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handler) createMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	member, err := h.repo.CreateMember(r.Context(), repo.MemberInput{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.events.Emit(events.MemberCreated(r.Context(), member))
	writeJSON(w, http.StatusCreated, member)
}

func (h *Handler) getMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.repo.GetMember(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *Handler) updateMember(w http.ResponseWriter, r *http.Request) {
	var req memberPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	member, err := h.repo.UpdateMember(r.Context(), mux.Vars(r)["id"], repo.MemberPatch{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

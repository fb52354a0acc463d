package handlers

import (
	"net/http"

	"github.com/pribylovaa/hrm-auth/internal/models"
	"github.com/pribylovaa/hrm-auth/internal/transport/http/apierrors"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.BadRequest("invalid request body"))
		return
	}

	m, err := h.svc.Register(r.Context(), models.RegisterInput{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, memberFromModel(m))
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.BadRequest("invalid request body"))
		return
	}

	res, err := h.svc.Login(r.Context(), in.Email, in.Password, clientMeta(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authFromModel(res))
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(w, r, &in); err != nil || in.RefreshToken == "" {
		apierrors.WriteError(w, r, apierrors.BadRequest("refresh_token is required"))
		return
	}

	res, err := h.svc.Refresh(r.Context(), in.RefreshToken, clientMeta(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authFromModel(res))
}

// Logout всегда отвечает успехом, даже на битое тело.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	_ = decodeStrict(w, r, &in)

	h.svc.Logout(r.Context(), in.RefreshToken)

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	var in verifyRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.BadRequest("invalid request body"))
		return
	}

	claims, err := h.svc.VerifyAccessToken(r.Context(), in.AccessToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	out := verifyResponse{
		Valid:       true,
		MemberID:    claims.MemberID,
		Email:       claims.Email,
		TokenFamily: claims.TokenFamily,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}

	writeJSON(w, http.StatusOK, out)
}

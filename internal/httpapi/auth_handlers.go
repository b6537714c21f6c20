package httpapi

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"landingbuilder.io/internal/auth"
)

type magicLinkRequestBody struct {
	Email       string `json:"email"`
	AccountName string `json:"account_name,omitempty"`
	AccountID   string `json:"account_id,omitempty"`
	InviteToken string `json:"invite_token,omitempty"`
}

func (b *magicLinkRequestBody) Validate() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&b.AccountName, validation.Length(2, 80)),
		validation.Field(&b.AccountID, validation.Length(1, 64)),
	)
}

type magicLinkVerifyBody struct {
	Token     string `json:"token"`
	AccountID string `json:"account_id,omitempty"`
}

func (b *magicLinkVerifyBody) Validate() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.Token, validation.Required, validation.Length(10, 256)),
		validation.Field(&b.AccountID, validation.Length(1, 64)),
	)
}

type googleLoginBody struct {
	IDToken     string `json:"id_token"`
	AccountID   string `json:"account_id,omitempty"`
	InviteToken string `json:"invite_token,omitempty"`
}

func (b *googleLoginBody) Validate() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.IDToken, validation.Required, validation.Length(10, 0)),
		validation.Field(&b.AccountID, validation.Length(1, 64)),
	)
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

func (b *refreshBody) Validate() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.RefreshToken, validation.Required),
	)
}

type magicLinkResponse struct {
	Message string `json:"message"`
	auth.MagicLinkTicket
}

func (a *API) handleMagicLinkRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var body magicLinkRequestBody
	if !decodeValid(w, r, &body) {
		return
	}
	ticket, err := a.svc.RequestMagicLink(r.Context(), auth.MagicLinkRequest{
		Email:       body.Email,
		AccountName: body.AccountName,
		TenantID:    body.AccountID,
		InviteToken: body.InviteToken,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	// No mail transport yet; the link is handed back to the caller.
	writeJSON(w, http.StatusOK, magicLinkResponse{Message: "magic link issued", MagicLinkTicket: ticket})
}

func (a *API) handleMagicLinkVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var body magicLinkVerifyBody
	if !decodeValid(w, r, &body) {
		return
	}
	res, err := a.svc.VerifyMagicLink(r.Context(), auth.VerifyMagicLinkRequest{
		Token:    body.Token,
		TenantID: body.AccountID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var body googleLoginBody
	if !decodeValid(w, r, &body) {
		return
	}
	res, err := a.svc.LoginWithIdentity(r.Context(), auth.IdentityLogin{
		Credential:  body.IDToken,
		TenantID:    body.AccountID,
		InviteToken: body.InviteToken,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var body refreshBody
	if !decodeValid(w, r, &body) {
		return
	}
	res, err := a.svc.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := a.svc.Logout(r.Context(), currentAuth(r)); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

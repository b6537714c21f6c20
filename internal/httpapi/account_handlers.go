package httpapi

import (
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"landingbuilder.io/internal/auth"
)

var roleValues = []any{string(auth.RoleEditor), string(auth.RoleAdmin), string(auth.RoleOwner)}

type createAccountBody struct {
	Name string `json:"name"`
}

func (b *createAccountBody) Validate() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.Name, validation.Required, validation.Length(2, 80)),
	)
}

type changeRoleBody struct {
	Role string `json:"role"`
}

func (b *changeRoleBody) Validate() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.Role, validation.Required, validation.In(roleValues...)),
	)
}

type createInviteBody struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

func (b *createInviteBody) Validate() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&b.Role, validation.In(roleValues...)),
	)
}

type inviteResponse struct {
	Invite auth.OneTimeToken `json:"invite"`
	Token  string            `json:"token"`
}

// POST /v1/accounts
func (a *API) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var body createAccountBody
	if !decodeValid(w, r, &body) {
		return
	}
	tenant, err := a.svc.CreateTenant(r.Context(), currentAuth(r), body.Name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"account": tenant, "role": auth.RoleOwner})
}

// GET /v1/accounts/me
func (a *API) handleCurrentAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	acct, err := a.svc.CurrentAccount(r.Context(), currentAuth(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// GET /v1/accounts/me/members
func (a *API) handleMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	members, err := a.svc.ListMembers(r.Context(), currentAuth(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

// PATCH|DELETE /v1/accounts/me/members/{userID}
func (a *API) handleMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathTail(r.URL.Path, "/v1/accounts/me/members/")
	if !ok || strings.Contains(userID, "/") {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	ac := currentAuth(r)
	switch r.Method {
	case http.MethodPatch:
		var body changeRoleBody
		if !decodeValid(w, r, &body) {
			return
		}
		role, err := auth.ParseRole(body.Role)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		m, err := a.svc.ChangeMemberRole(r.Context(), ac, userID, role)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	case http.MethodDelete:
		if err := a.svc.RemoveMember(r.Context(), ac, userID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

// GET|POST /v1/accounts/me/invites
func (a *API) handleInvites(w http.ResponseWriter, r *http.Request) {
	ac := currentAuth(r)
	switch r.Method {
	case http.MethodGet:
		invites, err := a.svc.ListInvites(r.Context(), ac)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invites": invites})
	case http.MethodPost:
		var body createInviteBody
		if !decodeValid(w, r, &body) {
			return
		}
		issued, err := a.svc.CreateInvite(r.Context(), ac, body.Email, auth.Role(body.Role))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, inviteResponse{Invite: issued.Token, Token: issued.Raw})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// POST /v1/accounts/me/invites/{inviteID}/revoke
func (a *API) handleInviteRevoke(w http.ResponseWriter, r *http.Request) {
	rest, ok := pathTail(r.URL.Path, "/v1/accounts/me/invites/")
	inviteID, found := strings.CutSuffix(rest, "/revoke")
	if !ok || !found || inviteID == "" || strings.Contains(inviteID, "/") {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	invite, err := a.svc.RevokeInvite(r.Context(), currentAuth(r), inviteID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invite": invite})
}

func pathTail(path, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(path, prefix)
	return rest, ok && rest != ""
}

package auth

import "context"

// ExternalIdentity is a verified third-party login.
type ExternalIdentity struct {
	Subject string
	Email   string
	Name    string
}

// IdentityVerifier validates an opaque third-party credential.
// Rejections wrap ErrInvalid; transport failures are returned as-is.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (ExternalIdentity, error)
}

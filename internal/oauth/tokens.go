package oauth

import (
	"context"
	"errors"

	"github.com/badkiko/y2m/internal/crypto"
	"github.com/badkiko/y2m/internal/dispatch"
	"github.com/badkiko/y2m/internal/model"
	"github.com/badkiko/y2m/internal/storage"
)

// ProviderYandex is the only upstream identity provider in this deployment.
const ProviderYandex = "yandex"

// TokenService resolves the stored account token for dispatch-time
// injection. It satisfies dispatch.TokenSource.
type TokenService struct {
	store  *storage.Repository
	sealer *crypto.Sealer
}

func NewTokenService(store *storage.Repository, sealer *crypto.Sealer) *TokenService {
	return &TokenService{store: store, sealer: sealer}
}

// AccessToken returns the decrypted access token of the linked account.
func (s *TokenService) AccessToken(ctx context.Context) (string, error) {
	token, err := s.store.CurrentToken(ctx, ProviderYandex)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", dispatch.ErrNoToken
		}
		return "", err
	}
	return s.sealer.Decrypt(token.AccessToken), nil
}

// Current returns the stored token row itself.
func (s *TokenService) Current(ctx context.Context) (model.UserToken, error) {
	return s.store.CurrentToken(ctx, ProviderYandex)
}

package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/oauth"
	"github.com/mbolis/quick-survey/config"
	"golang.org/x/crypto/bcrypt"
)

const (
	ClaimRoles     = "roles"
	ClaimCompanyID = "company_id"

	refreshTokenTTL = 8760 * time.Hour
)

var errRefresh = errors.New("could not refresh")

// AccountStore is what the bearer server needs from persistence.
type AccountStore interface {
	AccountCredentials(ctx context.Context, username string) (hash []byte, companyID string, err error)
	StoreToken(ctx context.Context, username, tokenID, refreshTokenID string, expiration time.Time) error
	ConsumeToken(ctx context.Context, username, tokenID, refreshTokenID string, now time.Time) (bool, error)
}

type credentialsVerifier struct {
	store AccountStore
}

func CredentialsVerifier(store AccountStore) oauth.CredentialsVerifier {
	return &credentialsVerifier{store}
}

// NewBearerServer serves the password and refresh-token grants of company
// owner accounts.
func NewBearerServer(store AccountStore, cfg config.Config) *oauth.BearerServer {
	return oauth.NewBearerServer(cfg.TokenSecret, cfg.TokenTTL, CredentialsVerifier(store), nil)
}

func (cs *credentialsVerifier) ValidateUser(username string, password string, scope string, r *http.Request) error {
	hash, _, err := cs.store.AccountCredentials(r.Context(), username)
	if err != nil {
		return err
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password))
}
func (cs *credentialsVerifier) StoreTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	return cs.store.StoreToken(context.Background(), credential, tokenID, refreshTokenID, time.Now().Add(refreshTokenTTL))
}
func (cs *credentialsVerifier) ValidateTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	ok, err := cs.store.ConsumeToken(context.Background(), credential, tokenID, refreshTokenID, time.Now())
	if err != nil || !ok {
		return errRefresh
	}
	return nil
}
func (cs *credentialsVerifier) AddClaims(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	_, companyID, err := cs.store.AccountCredentials(r.Context(), credential)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		ClaimRoles:     "admin",
		ClaimCompanyID: companyID,
	}, nil
}
func (*credentialsVerifier) AddProperties(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{}, nil
}
func (*credentialsVerifier) ValidateClient(clientID string, clientSecret string, scope string, r *http.Request) error {
	return errors.New("not supported")
}

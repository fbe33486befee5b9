package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/oauth"
)

// TokenResponse is the body the bearer server answers a grant with.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshGrant runs the refresh_token grant against the bearer server
// without going through the network, returning the captured response.
func RefreshGrant(bearerServer *oauth.BearerServer, refreshToken string) (ResponseBuffer, error) {
	body := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}.Encode()

	req, err := http.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/x-www-form-urlencoded")
	req.Header.Set("content-length", strconv.Itoa(len(body)))

	resp := NewResponseBuffer()
	bearerServer.UserCredentials(resp, req)
	return resp, nil
}

// DecodeTokens parses a successful grant response.
func DecodeTokens(resp ResponseBuffer) (TokenResponse, error) {
	tokens := TokenResponse{}
	if resp.Status() != http.StatusOK {
		return tokens, fmt.Errorf("grant failed with status %d", resp.Status())
	}
	if err := json.Unmarshal(resp.Body(), &tokens); err != nil {
		return tokens, err
	}
	return tokens, nil
}

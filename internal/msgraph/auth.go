package msgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"golang.org/x/oauth2"
)

var requiredScopes = []string{
	"https://graph.microsoft.com/Calendars.Read",
	"offline_access",
}

func msEndpoint(tenantID, path string) string {
	return "https://login.microsoftonline.com/" + tenantID + "/oauth2/v2.0/" + path
}

// DefaultTokenPath returns $XDG_STATE_HOME/tta/auth/msgraph_tokens.json.
func DefaultTokenPath() (string, error) {
	path, err := xdg.StateFile(filepath.Join("tta", "auth", "msgraph_tokens.json"))
	if err != nil {
		return "", fmt.Errorf("cannot determine token path: %w", err)
	}
	return path, nil
}

// Authenticator obtains Microsoft Graph tokens with the OAuth2 device code
// flow and caches them on disk.
type Authenticator struct {
	cfg       *oauth2.Config
	tokenPath string
	out       io.Writer
}

// NewAuthenticator returns an Authenticator for the given tenant and client.
// Device code prompts are written to out.
func NewAuthenticator(tenantID, clientID, tokenPath string, out io.Writer) *Authenticator {
	return &Authenticator{
		cfg: &oauth2.Config{
			ClientID: clientID,
			Scopes:   requiredScopes,
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: msEndpoint(tenantID, "devicecode"),
				TokenURL:      msEndpoint(tenantID, "token"),
				AuthStyle:     oauth2.AuthStyleInParams,
			},
		},
		tokenPath: tokenPath,
		out:       out,
	}
}

// loadToken returns nil, nil when no token has been saved yet.
func (a *Authenticator) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(a.tokenPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token file (delete %s to re-authenticate): %w", a.tokenPath, err)
	}
	return &tok, nil
}

func (a *Authenticator) saveToken(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(a.tokenPath), 0o700); err != nil {
		return fmt.Errorf("creating auth directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling token: %w", err)
	}
	tmpPath := a.tokenPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmpPath, a.tokenPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving token file: %w", err)
	}
	return nil
}

// Token returns a usable token. It tries the saved token, then a refresh,
// and finally starts a new device code flow.
func (a *Authenticator) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := a.loadToken()
	if err != nil {
		// Corrupt token: warn and re-auth.
		fmt.Fprintf(a.out, "Warning: %v\n", err)
		tok = nil
	}

	if tok != nil && tok.Valid() {
		return tok, nil
	}

	if tok != nil && tok.RefreshToken != "" {
		refreshed, err := a.cfg.TokenSource(ctx, tok).Token()
		if err == nil {
			if err := a.saveToken(refreshed); err != nil {
				fmt.Fprintf(a.out, "Warning: could not save refreshed token: %v\n", err)
			}
			return refreshed, nil
		}
		fmt.Fprintf(a.out, "Token refresh failed (%v), re-authenticating...\n", err)
	}

	resp, err := a.cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device auth request failed: %w", err)
	}

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "To sign in, use a web browser to open the page:")
	fmt.Fprintf(a.out, "  %s\n", resp.VerificationURI)
	fmt.Fprintf(a.out, "Enter the code: %s\n", resp.UserCode)
	fmt.Fprintln(a.out)

	newTok, err := a.cfg.DeviceAccessToken(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("device authentication failed: %w", err)
	}
	if err := a.saveToken(newTok); err != nil {
		fmt.Fprintf(a.out, "Warning: could not save token: %v\n", err)
	}
	return newTok, nil
}

// Client authenticates and returns a Graph client whose refreshed tokens
// are written back to disk.
func (a *Authenticator) Client(ctx context.Context) (*Client, error) {
	tok, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, a.TokenSource(ctx, tok)), nil
}

// TokenSource wraps tok so refreshed tokens are persisted.
func (a *Authenticator) TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return &savingTokenSource{ts: a.cfg.TokenSource(ctx, tok), save: a.saveToken}
}

// savingTokenSource persists every token it hands out. Saving is best-effort.
type savingTokenSource struct {
	ts   oauth2.TokenSource
	save func(*oauth2.Token) error
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.ts.Token()
	if err != nil {
		return nil, err
	}
	_ = s.save(tok)
	return tok, nil
}

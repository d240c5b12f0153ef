package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// DefaultRedirectPort is the local port that receives the OAuth callback
const DefaultRedirectPort = 8085

// OAuthConfig holds the configuration for OAuth 2.0 authentication
type OAuthConfig struct {
	CredentialsFile string    // Path to OAuth client credentials JSON
	TokenFile       string    // Path to store/load token
	RedirectPort    int       // Local callback port, DefaultRedirectPort if zero
	Output          io.Writer // Where to print browser instructions
}

func (c OAuthConfig) output() io.Writer {
	if c.Output == nil {
		return io.Discard
	}
	return c.Output
}

func (c OAuthConfig) port() int {
	if c.RedirectPort == 0 {
		return DefaultRedirectPort
	}
	return c.RedirectPort
}

// loadOAuthClient parses the OAuth client credentials for read-only Drive access
func loadOAuthClient(cfg OAuthConfig) (*oauth2.Config, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read OAuth credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse OAuth credentials: %w", err)
	}
	config.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", cfg.port())
	return config, nil
}

// UserTokenSource returns a token source backed by the cached user token.
// The cached token is refreshed as needed and rewritten when it changes.
// When no usable token exists the browser flow is started.
func UserTokenSource(ctx context.Context, cfg OAuthConfig) (oauth2.TokenSource, error) {
	config, err := loadOAuthClient(cfg)
	if err != nil {
		return nil, err
	}

	token, err := getToken(ctx, config, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to get OAuth token: %w", err)
	}

	return &persistingTokenSource{
		base:      config.TokenSource(ctx, token),
		tokenFile: cfg.TokenFile,
		last:      token.AccessToken,
	}, nil
}

// Authorize always runs the browser flow and stores the resulting token
func Authorize(ctx context.Context, cfg OAuthConfig) (*oauth2.Token, error) {
	config, err := loadOAuthClient(cfg)
	if err != nil {
		return nil, err
	}
	return getTokenFromWeb(ctx, config, cfg)
}

// ServiceAccountTokenSource builds a token source from a service account key
func ServiceAccountTokenSource(ctx context.Context, credentialsPath string) (oauth2.TokenSource, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(b, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	return config.TokenSource(ctx), nil
}

// persistingTokenSource saves refreshed tokens back to the token file
type persistingTokenSource struct {
	mu        sync.Mutex
	base      oauth2.TokenSource
	tokenFile string
	last      string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		_ = saveToken(s.tokenFile, token)
	}
	return token, nil
}

// getToken retrieves a token from file or initiates the OAuth flow
func getToken(ctx context.Context, config *oauth2.Config, cfg OAuthConfig) (*oauth2.Token, error) {
	token, err := loadToken(cfg.TokenFile)
	if err == nil {
		// Check if token is still valid or can be refreshed
		newToken, err := config.TokenSource(ctx, token).Token()
		if err == nil {
			if newToken.AccessToken != token.AccessToken {
				_ = saveToken(cfg.TokenFile, newToken)
			}
			return newToken, nil
		}
		// Token refresh failed, need to re-authenticate
	}

	return getTokenFromWeb(ctx, config, cfg)
}

// loadToken loads a token from a file
func loadToken(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(token)
	return token, err
}

// saveToken saves a token to a file readable only by the owner
func saveToken(file string, token *oauth2.Token) error {
	if file == "" {
		return errors.New("no token file configured")
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}

// getTokenFromWeb initiates the OAuth flow via browser
func getTokenFromWeb(ctx context.Context, config *oauth2.Config, cfg OAuthConfig) (*oauth2.Token, error) {
	out := cfg.output()

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			errChan <- fmt.Errorf("no code in callback")
			fmt.Fprintf(w, "Error: No authorization code received")
			return
		}
		codeChan <- code
		fmt.Fprintf(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window and return to the terminal.</p></body></html>")
	})

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", cfg.port()))
	if err != nil {
		return nil, fmt.Errorf("unable to start callback listener: %w", err)
	}
	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Opening browser for Google authentication...")
	fmt.Fprintln(out, "If the browser doesn't open, please visit this URL:")
	fmt.Fprintln(out)
	fmt.Fprintln(out, authURL)
	fmt.Fprintln(out)

	openBrowser(authURL)

	var authCode string
	select {
	case authCode = <-codeChan:
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	token, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange auth code: %w", err)
	}

	if err := saveToken(cfg.TokenFile, token); err != nil {
		fmt.Fprintf(out, "Warning: couldn't save token: %v\n", err)
	}

	fmt.Fprintln(out, "Authentication successful!")
	return token, nil
}

// openBrowser opens a URL in the default browser
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		if _, err := exec.LookPath("xdg-open"); err == nil {
			cmd = exec.Command("xdg-open", url)
		} else if _, err := exec.LookPath("wslview"); err == nil {
			cmd = exec.Command("wslview", url)
		}
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	}

	if cmd != nil {
		_ = cmd.Start()
	}
}

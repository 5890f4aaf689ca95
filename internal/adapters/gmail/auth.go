package gmail

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
)

// Authorization flows for obtaining the first token
const (
	AuthModeConsole  = "console"
	AuthModeCallback = "callback"
)

// Authorizer produces an authenticated HTTP client for the Gmail API, running
// the OAuth consent flow when no cached token exists
type Authorizer struct {
	config       *oauth2.Config
	tokenFile    string
	mode         string
	callbackAddr string
	in           io.Reader
	out          io.Writer
	logger       *zap.Logger
}

// NewAuthorizer loads OAuth client credentials from credentialsFile
func NewAuthorizer(credentialsFile, tokenFile, mode, callbackAddr string, logger *zap.Logger) (*Authorizer, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read Gmail credentials file: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, gmailapi.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Gmail credentials: %w", err)
	}

	return newAuthorizer(cfg, tokenFile, mode, callbackAddr, logger)
}

func newAuthorizer(cfg *oauth2.Config, tokenFile, mode, callbackAddr string, logger *zap.Logger) (*Authorizer, error) {
	switch mode {
	case AuthModeConsole, AuthModeCallback:
	default:
		return nil, fmt.Errorf("unsupported Gmail auth mode: %s", mode)
	}

	return &Authorizer{
		config:       cfg,
		tokenFile:    tokenFile,
		mode:         mode,
		callbackAddr: callbackAddr,
		in:           os.Stdin,
		out:          os.Stdout,
		logger:       logger,
	}, nil
}

// Client returns an HTTP client that refreshes the cached token as needed
func (a *Authorizer) Client(ctx context.Context) (*http.Client, error) {
	tok, err := loadToken(a.tokenFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}

		a.logger.Info("No cached Gmail token, starting authorization", zap.String("mode", a.mode))
		tok, err = a.authorize(ctx)
		if err != nil {
			return nil, err
		}
		if err := saveToken(a.tokenFile, tok); err != nil {
			return nil, err
		}
		a.logger.Info("Saved Gmail token", zap.String("path", a.tokenFile))
	}

	return a.config.Client(ctx, tok), nil
}

func (a *Authorizer) authorize(ctx context.Context) (*oauth2.Token, error) {
	if a.mode == AuthModeCallback {
		return a.authorizeCallback(ctx)
	}
	return a.authorizeConsole(ctx)
}

// authorizeConsole prints the consent URL and reads the code from the terminal
func (a *Authorizer) authorizeConsole(ctx context.Context) (*oauth2.Token, error) {
	authURL := a.config.AuthCodeURL(uuid.NewString(), oauth2.AccessTypeOffline)
	fmt.Fprintf(a.out, "Open the following link in your browser, then paste the authorization code:\n%s\n", authURL)

	scanner := bufio.NewScanner(a.in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read authorization code: %w", err)
		}
		return nil, fmt.Errorf("no authorization code entered")
	}

	code := strings.TrimSpace(scanner.Text())
	if code == "" {
		return nil, fmt.Errorf("no authorization code entered")
	}

	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

// authorizeCallback receives the code on a local redirect listener
func (a *Authorizer) authorizeCallback(ctx context.Context) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", a.callbackAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for OAuth callback: %w", err)
	}

	cfg := *a.config
	cfg.RedirectURL = "http://" + ln.Addr().String() + "/callback"
	state := uuid.NewString()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization denied", http.StatusForbidden)
			select {
			case errCh <- fmt.Errorf("authorization denied: %s", e):
			default:
			}
			return
		}
		fmt.Fprintln(w, "Authorization complete, you can close this window.")
		select {
		case codeCh <- q.Get("code"):
		default:
		}
	})

	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("OAuth callback server error", zap.Error(err))
		}
	}()
	defer srv.Close()

	fmt.Fprintf(a.out, "Open the following link in your browser to authorize access:\n%s\n",
		cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	select {
	case code := <-codeCh:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token file %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return nil
}

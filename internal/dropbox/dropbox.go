// Package dropbox downloads the schedule workbook from Dropbox. Access
// tokens come from an OAuth2 refresh-token flow (app key + secret) or a
// static token; the content hash lets callers skip unchanged workbooks.
package dropbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/dustin/go-humanize"
	"golang.org/x/oauth2"
)

const (
	DefaultTokenURL   = "https://api.dropboxapi.com/oauth2/token"
	DefaultContentURL = "https://content.dropboxapi.com/2/files/download"
	DefaultPath       = "/Controle - Obras.xlsx"
)

var (
	// ErrNoCredentials means neither a refresh token (with app key and
	// secret) nor an access token is configured.
	ErrNoCredentials = errors.New("dropbox: no token configured, set a refresh token or an access token")
	// ErrDownload wraps non-200 download responses.
	ErrDownload = errors.New("dropbox: download failed")
)

// Config holds credentials and endpoints.
type Config struct {
	AccessToken  string
	RefreshToken string
	AppKey       string
	AppSecret    string

	TokenURL   string
	ContentURL string
	Timeout    time.Duration // Default: 60s.
	MaxBytes   int64         // Default: 32 MiB.

	// HTTPClient is used for both token refresh and downloads.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (c *Config) defaults() {
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.ContentURL == "" {
		c.ContentURL = DefaultContentURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 32 << 20
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Configured reports whether c carries usable credentials.
func (c Config) Configured() bool {
	return (c.RefreshToken != "" && c.AppKey != "" && c.AppSecret != "") || c.AccessToken != ""
}

// File is a downloaded workbook.
type File struct {
	Path   string
	Name   string
	Body   []byte
	SHA256 string
}

// Client downloads files with a cached, auto-refreshing token.
type Client struct {
	cfg    Config
	tokens oauth2.TokenSource
	http   *http.Client
}

// New builds a client. A refresh token takes precedence over a static
// access token, as it does for the web app this replaces.
func New(cfg Config) (*Client, error) {
	cfg.defaults()
	var ts oauth2.TokenSource
	switch {
	case cfg.RefreshToken != "" && cfg.AppKey != "" && cfg.AppSecret != "":
		oc := &oauth2.Config{
			ClientID:     cfg.AppKey,
			ClientSecret: cfg.AppSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, cfg.HTTPClient)
		ts = oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	case cfg.AccessToken != "":
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
	default:
		return nil, ErrNoCredentials
	}
	return &Client{cfg: cfg, tokens: oauth2.ReuseTokenSource(nil, ts), http: cfg.HTTPClient}, nil
}

// NormalizePath trims p and prefixes "/" when missing. Blank gives "".
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

// Download fetches path and hashes its content.
func (c *Client) Download(ctx context.Context, path string) (*File, error) {
	path = NormalizePath(path)
	if path == "" {
		path = DefaultPath
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("dropbox: token: %w", err)
	}
	arg, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ContentURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dropbox: new request: %w", err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Dropbox-API-Arg", asciiJSON(arg))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dropbox: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: %s: HTTP %d: %s", ErrDownload, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("dropbox: read body: %w", err)
	}
	if int64(len(body)) > c.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrDownload, path, humanize.IBytes(uint64(c.cfg.MaxBytes)))
	}

	sum := sha256.Sum256(body)
	f := &File{
		Path:   path,
		Name:   path[strings.LastIndexByte(path, '/')+1:],
		Body:   body,
		SHA256: hex.EncodeToString(sum[:]),
	}
	c.cfg.Logger.Info("dropbox: downloaded",
		"path", path, "size", humanize.IBytes(uint64(len(body))), "duration", time.Since(start))
	return f, nil
}

// asciiJSON escapes non-ASCII runes; HTTP header values must be ASCII.
func asciiJSON(b []byte) string {
	var sb strings.Builder
	for _, r := range string(b) {
		if r < 0x80 {
			sb.WriteRune(r)
			continue
		}
		if r > 0xFFFF {
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&sb, "\\u%04x\\u%04x", r1, r2)
			continue
		}
		fmt.Fprintf(&sb, "\\u%04x", r)
	}
	return sb.String()
}

// Package platform implements the hosted source-control collaborator the
// orchestrator needs: per-call App-installation token minting, PR file
// listing, and the upsert-by-marker issue-comment protocol.
package platform

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v68/github"
)

// Client is the concrete GitHub implementation of the Platform Client
// component. A fresh *github.Client authenticated with a fresh
// installation token is built on every call, per spec (no token caching
// is mandated).
type Client struct {
	appID      int64
	privateKey *rsa.PrivateKey
	httpClient *http.Client

	// baseClient is unauthenticated; with the App JWT attached it is used
	// only to look up the installation id for a repo and mint its
	// installation token.
	baseClient *github.Client

	// baseURL overrides the API root, used in tests and for GitHub
	// Enterprise deployments. Nil means github.com.
	baseURL *url.URL
}

// NewClient loads the App private key from privateKeyPath and returns a
// Client ready to mint installation tokens for appID.
func NewClient(appID int64, privateKeyPath string) (*Client, error) {
	keyBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read GitHub App private key: %w", err)
	}

	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return nil, fmt.Errorf("decode PEM private key: no block found")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		parsed, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not RSA")
		}
		key = rsaKey
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	c := &Client{
		appID:      appID,
		privateKey: key,
		httpClient: httpClient,
	}
	c.baseClient = c.newGitHubClient(httpClient)
	return c, nil
}

// newGitHubClient builds a *github.Client pointed at baseURL when set,
// github.com otherwise.
func (c *Client) newGitHubClient(httpClient *http.Client) *github.Client {
	gh := github.NewClient(httpClient)
	if c.baseURL != nil {
		gh.BaseURL = c.baseURL
	}
	return gh
}

// appJWT mints a short-lived JWT identifying the GitHub App, per GitHub's
// App authentication scheme.
func (c *Client) appJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-30 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
		Issuer:    fmt.Sprintf("%d", c.appID),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign App JWT: %w", err)
	}
	return signed, nil
}

// getInstallationToken mints a short-lived App-installation token scoped
// to owner/repo. Tokens are minted fresh on every call.
func (c *Client) getInstallationToken(ctx context.Context, owner, repo string) (string, error) {
	jwtToken, err := c.appJWT()
	if err != nil {
		return "", err
	}

	appClient := c.baseClient.WithAuthToken(jwtToken)

	installation, _, err := appClient.Apps.FindRepoInstallation(ctx, owner, repo)
	if err != nil {
		return "", newError(0, fmt.Sprintf("find installation for %s/%s", owner, repo), err)
	}

	token, _, err := appClient.Apps.CreateInstallationToken(ctx, installation.GetID(), nil)
	if err != nil {
		return "", newError(0, "mint installation token", err)
	}

	return token.GetToken(), nil
}

// installationClient returns a *github.Client authenticated with a fresh
// installation token for owner/repo.
func (c *Client) installationClient(ctx context.Context, owner, repo string) (*github.Client, error) {
	token, err := c.getInstallationToken(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	return c.newGitHubClient(c.httpClient).WithAuthToken(token), nil
}

// ListPRFiles fetches the full (auto-paginated) list of files changed by
// a pull request.
func (c *Client) ListPRFiles(ctx context.Context, owner, repo string, prNumber int) ([]FileChange, error) {
	gh, err := c.installationClient(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	var all []FileChange
	opts := &github.ListOptions{PerPage: 100}
	for {
		files, resp, err := gh.PullRequests.ListFiles(ctx, owner, repo, prNumber, &github.ListOptions{
			Page:    opts.Page,
			PerPage: opts.PerPage,
		})
		if err != nil {
			return nil, newError(statusOf(resp), "list PR files", err)
		}
		for _, f := range files {
			all = append(all, FileChange{
				Filename:    f.GetFilename(),
				Status:      f.GetStatus(),
				Patch:       f.GetPatch(),
				ContentsURL: f.GetContentsURL(),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// CreateComment posts a new issue comment on the PR and returns its id.
func (c *Client) CreateComment(ctx context.Context, owner, repo string, prNumber int, body string) (int64, error) {
	gh, err := c.installationClient(ctx, owner, repo)
	if err != nil {
		return 0, err
	}

	comment, resp, err := gh.Issues.CreateComment(ctx, owner, repo, prNumber, &github.IssueComment{
		Body: github.Ptr(body),
	})
	if err != nil {
		return 0, newError(statusOf(resp), "create comment", err)
	}
	return comment.GetID(), nil
}

// editComment edits an existing issue comment by id.
func (c *Client) editComment(ctx context.Context, owner, repo string, commentID int64, body string) error {
	gh, err := c.installationClient(ctx, owner, repo)
	if err != nil {
		return err
	}

	_, resp, err := gh.Issues.EditComment(ctx, owner, repo, commentID, &github.IssueComment{
		Body: github.Ptr(body),
	})
	if err != nil {
		return newError(statusOf(resp), "edit comment", err)
	}
	return nil
}

// UpsertMarkedComment implements the idempotent upsert-by-marker protocol:
// edit knownID if set, else scan existing issue comments for one whose
// body embeds marker, else create a new comment. Returns the comment id
// the caller should cache for subsequent calls within the same run.
func (c *Client) UpsertMarkedComment(ctx context.Context, owner, repo string, prNumber int, body, marker string, knownID *int64) (int64, error) {
	if knownID != nil {
		if err := c.editComment(ctx, owner, repo, *knownID, body); err != nil {
			return 0, err
		}
		return *knownID, nil
	}

	gh, err := c.installationClient(ctx, owner, repo)
	if err != nil {
		return 0, err
	}

	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := gh.Issues.ListComments(ctx, owner, repo, prNumber, opts)
		if err != nil {
			return 0, newError(statusOf(resp), "list comments", err)
		}
		for _, comment := range comments {
			if strings.Contains(comment.GetBody(), marker) {
				if err := c.editComment(ctx, owner, repo, comment.GetID(), body); err != nil {
					return 0, err
				}
				return comment.GetID(), nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return c.CreateComment(ctx, owner, repo, prNumber, body)
}

func statusOf(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

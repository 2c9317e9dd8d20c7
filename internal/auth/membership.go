package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v73/github"
)

// MembershipVerifier answers "is login a member of org" through the GitHub
// organization directory. It is a pure query.
type MembershipVerifier struct {
	baseURL *url.URL
	client  *http.Client
}

// NewMembershipVerifier creates a verifier against the REST API at apiURL
// ("" means api.github.com).
func NewMembershipVerifier(apiURL string, timeout time.Duration) (*MembershipVerifier, error) {
	if apiURL == "" {
		apiURL = "https://api.github.com/"
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("auth: parsing GitHub API URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MembershipVerifier{
		baseURL: u,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Verify looks up the organization and the user, then checks the org's
// member roster.
//
// Every lookup error (unknown org, unknown user, rate limit, network) is a
// *VerificationFailure. A clean "no" is (false, nil).
func (v *MembershipVerifier) Verify(ctx context.Context, token, login, org string) (bool, error) {
	gh := github.NewClient(v.client).WithAuthToken(token)
	gh.BaseURL = v.baseURL

	fail := func(step string, err error) error {
		return &VerificationFailure{
			Token:  token,
			Org:    org,
			Login:  login,
			Detail: fmt.Sprintf("%s: %v", step, err),
			Err:    err,
		}
	}

	if _, _, err := gh.Organizations.Get(ctx, org); err != nil {
		return false, fail("looking up organization "+org, err)
	}
	if _, _, err := gh.Users.Get(ctx, login); err != nil {
		return false, fail("looking up user "+login, err)
	}

	member, _, err := gh.Organizations.IsMember(ctx, org, login)
	if err != nil {
		return false, fail("checking membership", err)
	}
	return member, nil
}

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/pkg/models"
)

// Candidate selectors per form role, most specific storefront convention last
var (
	IdentifierSelectors = []string{
		`input[type="email"]`,
		`input[name="email"]`,
		`input#email`,
		`input[name="customer[email]"]`,
	}
	SecretSelectors = []string{
		`input[type="password"]`,
		`input[name="password"]`,
		`input#password`,
		`input[name="customer[password]"]`,
	}
	SubmitSelectors = []string{
		`button[type="submit"]`,
		`input[type="submit"]`,
		`button.login-button`,
		`button[aria-label="Log in"]`,
	}
)

// login fills and submits the login form if one is there. It never returns an
// error: every problem becomes a skipped or failed outcome.
func (n *Navigator) login(ctx context.Context, page Page, creds *models.Credentials) LoginResult {
	if n.opts.LoginURL == "" {
		return skipped("no login URL configured")
	}
	if creds.Empty() {
		return skipped("no credentials configured")
	}

	if err := n.navigate(ctx, page, n.opts.LoginURL); err != nil {
		log.Warn().Err(err).Str("url", n.opts.LoginURL).Msg("Login page failed to load")
		return skipped(fmt.Sprintf("login page failed to load: %v", err))
	}
	n.settle(ctx, page)

	identifier := n.probe(ctx, page, IdentifierSelectors)
	secret := n.probe(ctx, page, SecretSelectors)
	if identifier == "" || secret == "" {
		return skipped("no login form found")
	}

	log.Debug().Str("identifier_field", identifier).Str("secret_field", secret).Msg("Login form found")

	if err := n.typeInto(ctx, page, identifier, creds.Identifier); err != nil {
		return failed(fmt.Sprintf("filling identifier: %v", err))
	}
	if err := n.typeInto(ctx, page, secret, creds.Secret); err != nil {
		return failed(fmt.Sprintf("filling secret: %v", err))
	}

	submit, err := n.submit(ctx, page)
	if err != nil {
		return failed(err.Error())
	}

	navCtx, cancel := withOptionalTimeout(ctx, n.opts.NavigationTimeout)
	if err := page.WaitNavigation(navCtx); err != nil {
		log.Debug().Err(err).Msg("No navigation after submit, continuing")
	}
	cancel()
	n.settle(ctx, page)

	return LoginResult{Outcome: LoginSucceeded, Reason: "submitted via " + submit}
}

// probe returns the first candidate that matches, or ""
func (n *Navigator) probe(ctx context.Context, page Page, candidates []string) string {
	for _, sel := range candidates {
		probeCtx, cancel := withOptionalTimeout(ctx, n.opts.ActionTimeout)
		ok, err := page.Exists(probeCtx, sel)
		cancel()
		if err != nil {
			log.Debug().Err(err).Str("selector", sel).Msg("Selector probe failed")
			continue
		}
		if ok {
			return sel
		}
	}
	return ""
}

func (n *Navigator) typeInto(ctx context.Context, page Page, selector, text string) error {
	budget := n.opts.ActionTimeout
	if budget > 0 {
		budget += time.Duration(len(text)) * n.opts.KeystrokeDelay
	}
	typeCtx, cancel := withOptionalTimeout(ctx, budget)
	defer cancel()
	return page.Type(typeCtx, selector, text, n.opts.KeystrokeDelay)
}

// submit clicks the first submit candidate that accepts a click
func (n *Navigator) submit(ctx context.Context, page Page) (string, error) {
	var lastErr error
	for _, sel := range SubmitSelectors {
		clickCtx, cancel := withOptionalTimeout(ctx, n.opts.ActionTimeout)
		ok, err := page.Exists(clickCtx, sel)
		if err == nil && ok {
			err = page.Click(clickCtx, sel)
			if err == nil {
				cancel()
				return sel, nil
			}
		}
		cancel()
		if err != nil {
			lastErr = err
			log.Debug().Err(err).Str("selector", sel).Msg("Submit candidate failed")
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("no submit control accepted a click: %w", lastErr)
	}
	return "", fmt.Errorf("no submit control found")
}

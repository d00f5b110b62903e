package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"

	"offerplacer/internal/domain"
)

const (
	sellFormPath = "/sell/new"
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Marketplace drives the real marketplace over HTTP: fetch the create-offer
// form, replay its hidden fields with the offer values, read the confirmation.
type Marketplace struct {
	BaseURL string
	Timeout time.Duration
}

func NewMarketplace(baseURL string) *Marketplace {
	return &Marketplace{BaseURL: strings.TrimRight(baseURL, "/"), Timeout: 30 * time.Second}
}

// storedCookie is the on-disk shape of one exported browser cookie.
type storedCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

// Open builds an HTTP session seeded from the profile directory's exported
// cookies. A missing cookie file is fine (the operator logs in before
// confirming); a missing profile directory is a configuration error.
func (m *Marketplace) Open(ctx context.Context, profileDir string) (Session, error) {
	if _, err := os.Stat(profileDir); err != nil {
		return nil, fmt.Errorf("profile dir: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(m.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("marketplace url: %w", err)
	}
	if err := loadCookies(jar, base, filepath.Join(profileDir, "cookies.json")); err != nil {
		return nil, err
	}

	s := &marketSession{
		base:   m.BaseURL,
		client: &http.Client{Jar: jar, Timeout: m.Timeout},
	}

	// Reachability check up front so a dead marketplace aborts the run
	// before any offer is touched.
	if _, err := s.fetch(ctx, m.BaseURL); err != nil {
		return nil, err
	}
	return s, nil
}

func loadCookies(jar http.CookieJar, base *url.URL, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var stored []storedCookie
	if err := json.Unmarshal(raw, &stored); err != nil {
		return fmt.Errorf("cookie file %s: %w", path, err)
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path})
	}
	jar.SetCookies(base, cookies)
	return nil
}

type marketSession struct {
	base   string
	client *http.Client
}

// fetch GETs a page with retries on transient failures. Auth rejections are
// not retried: they mean the session is lost.
func (s *marketSession) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	var fatal error // surfaced as-is so callers can match ErrSessionLost

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", userAgent)

			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
				fatal = fmt.Errorf("%w: HTTP %d on %s", ErrSessionLost, resp.StatusCode, pageURL)
				return retry.Unrecoverable(fatal)
			case resp.StatusCode != http.StatusOK:
				return fmt.Errorf("HTTP %d on %s", resp.StatusCode, pageURL)
			}

			doc, err = goquery.NewDocumentFromReader(resp.Body)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("parse %s: %w", pageURL, err))
			}
			return nil
		},
		retry.Attempts(4),
		retry.Delay(time.Second),
		retry.MaxDelay(15*time.Second),
		retry.MaxJitter(2*time.Second),
		retry.Context(ctx),
	)
	if err != nil {
		if fatal != nil {
			return nil, fatal
		}
		return nil, err
	}
	return doc, nil
}

func (s *marketSession) Submit(ctx context.Context, offer domain.Offer) (Confirmation, error) {
	// Navigate to the create-offer form.
	doc, err := s.fetch(ctx, s.base+sellFormPath)
	if err != nil {
		// Could not load the form page even with retries: the session is
		// gone, not a single-offer rejection.
		return Confirmation{}, fmt.Errorf("%w: %v", ErrSessionLost, err)
	}

	form := doc.Find("form[data-role=offer-form], form#offer-form").First()
	if form.Length() == 0 {
		// Login page instead of the sell form: cookies expired.
		if doc.Find("form[action*=login]").Length() > 0 {
			return Confirmation{}, fmt.Errorf("%w: redirected to login", ErrSessionLost)
		}
		return Confirmation{}, fmt.Errorf("offer form not found on %s", s.base+sellFormPath)
	}

	action, _ := form.Attr("action")
	if action == "" {
		action = sellFormPath
	}
	if !strings.HasPrefix(action, "http") {
		action = s.base + action
	}

	// Fill: replay hidden fields (tokens), then the offer values in the
	// fixed order the form expects.
	values := url.Values{}
	form.Find("input[type=hidden]").Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		val, _ := sel.Attr("value")
		if name != "" {
			values.Set(name, val)
		}
	})
	values.Set("name", offer.Name)
	values.Set("title", offer.Title)
	values.Set("quantity", strconv.Itoa(offer.Quantity))
	values.Set("price", fmt.Sprintf("%.2f", offer.Price))
	values.Set("description", offer.Description)
	if offer.ImageURL != "" {
		values.Set("image_url", offer.ImageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action, strings.NewReader(values.Encode()))
	if err != nil {
		return Confirmation{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return Confirmation{}, fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return Confirmation{}, fmt.Errorf("%w: HTTP %d on submit", ErrSessionLost, resp.StatusCode)
	case resp.StatusCode >= 500:
		return Confirmation{}, fmt.Errorf("%w: HTTP %d on submit", ErrSessionLost, resp.StatusCode)
	}

	result, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Confirmation{}, fmt.Errorf("parse confirmation: %w", err)
	}

	// Read confirmation, or surface the form's rejection message.
	if node := result.Find("[data-role=offer-confirmation]").First(); node.Length() > 0 {
		id, _ := node.Attr("data-offer-id")
		return Confirmation{OfferID: id, Message: strings.TrimSpace(node.Text())}, nil
	}
	if msg := strings.TrimSpace(result.Find(".form-error, [data-role=form-error]").First().Text()); msg != "" {
		return Confirmation{}, fmt.Errorf("form rejected: %s", msg)
	}
	return Confirmation{}, fmt.Errorf("no confirmation found (HTTP %d)", resp.StatusCode)
}

func (s *marketSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

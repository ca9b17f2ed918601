package orange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"cdrwatch-backend/lib/restyutil"
	"cdrwatch-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("scrapers/orange")

var ErrLoginFailed = errors.New("login failed")

// Client wraps an authenticated session against the carrier portal. The
// session lives in the cookie jar; its expiry is enforced by the portal,
// not tracked locally, so callers are expected to build a fresh client
// (and Login again) every poll cycle.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	loginPath string
	cdrPath   string
}

type ClientOptions struct {
	BaseUrl string
	// defaults to /login
	LoginPath string
	// defaults to /CDR/mycdrs
	CdrPath string
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	// 2 requests max per second
	// max burst >= 2 just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(2, 2)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, "scrapers/orange/http")
	restyutil.InstrumentClient(client, restyInstrumentOutput)

	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	cdrPath := opts.CdrPath
	if cdrPath == "" {
		cdrPath = "/CDR/mycdrs"
	}

	c := &Client{
		BaseUrl:   baseUrl,
		Http:      client,
		loginPath: loginPath,
		cdrPath:   cdrPath,
	}
	return c, nil
}

// Login performs the portal's credential handshake: it pulls the CSRF
// token off the login form, posts the credentials and verifies that the
// portal actually let us in. Any outcome other than a confirmed session
// is an error; callers never get a half-authenticated client.
func (c *Client) Login(ctx context.Context, email, password string) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(c.loginPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return fmt.Errorf("fetch login page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login page")
		return fmt.Errorf("parse login page: %w", err)
	}

	form := map[string]string{
		"email":    email,
		"password": password,
	}
	token := doc.Find("input[name=_token]").AttrOr("value", "")
	if token == "" {
		// some deployments do not require the token, attempt anyway
		span.AddEvent("csrf token not found on login page")
	} else {
		form["_token"] = token
	}

	res, err = c.Http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(c.loginPath)
	if err != nil {
		span.SetStatus(codes.Error, "login request failed")
		return fmt.Errorf("post login form: %w", err)
	}
	if res.StatusCode() >= 400 {
		span.SetStatus(codes.Error, "login request rejected")
		return fmt.Errorf("%w: login endpoint returned %d", ErrLoginFailed, res.StatusCode())
	}

	page := strings.ToLower(string(res.Body()))
	loggedIn := strings.Contains(page, "logout") || strings.Contains(page, "dashboard")
	if !loggedIn && strings.HasSuffix(res.RawResponse.Request.URL.Path, c.loginPath) {
		span.SetStatus(codes.Error, "still on the login page")
		return ErrLoginFailed
	}

	return nil
}

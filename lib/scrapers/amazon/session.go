package amazon

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"amazonorders/lib/restyutil"
	"amazonorders/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

type SessionOptions struct {
	Username string
	Password string
	// write every raw response body to OutputDir
	Debug bool
	// bound on the auth flow loop, successes and failures of individual
	// steps both consume an attempt. defaults to 10.
	MaxAuthAttempts int
	// where session cookies are persisted between runs, defaults to
	// <user config dir>/amazonorders/cookies.json
	CookieJarPath string
	// where debug captures land, defaults to the working directory
	OutputDir string
	// defaults to ConsoleIO
	IO IO
	// overridable for tests
	BaseUrl string
	// priority-ordered step handlers, defaults to DefaultAuthForms()
	AuthForms []AuthForm
}

// Session owns a persistent, cookie-bearing client against the storefront.
// Every request replaces the last response and last parsed document and
// persists the cookie jar, so a single Session must not be shared between
// concurrent callers.
type Session struct {
	username        string
	password        string
	debug           bool
	maxAuthAttempts int
	cookieJarPath   string
	io              IO
	authForms       []AuthForm

	baseUrl *url.URL
	capture restyutil.PageCapture
	http    *resty.Client

	lastResponse  *resty.Response
	lastDoc       *goquery.Document
	authenticated bool
}

func DefaultCookieJarPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "amazonorders", "cookies.json")
}

func NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	if opts.MaxAuthAttempts <= 0 {
		opts.MaxAuthAttempts = 10
	}
	if opts.CookieJarPath == "" {
		opts.CookieJarPath = DefaultCookieJarPath()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.IO == nil {
		opts.IO = ConsoleIO{}
	}
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.AuthForms == nil {
		opts.AuthForms = DefaultAuthForms()
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	s := &Session{
		username:        opts.Username,
		password:        opts.Password,
		debug:           opts.Debug,
		maxAuthAttempts: opts.MaxAuthAttempts,
		cookieJarPath:   opts.CookieJarPath,
		io:              opts.IO,
		authForms:       opts.AuthForms,
		baseUrl:         baseUrl,
	}

	if opts.Debug {
		s.capture, err = restyutil.NewPageCapture(opts.OutputDir)
		if err != nil {
			return nil, err
		}
	}

	s.http, err = s.newHttpClient()
	if err != nil {
		return nil, err
	}
	err = s.loadCookies()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) newHttpClient() (*resty.Client, error) {
	client := resty.New()
	client.SetBaseURL(s.baseUrl.String())
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	// base headers are client-level defaults, request-level headers from
	// callers win on key collision
	client.SetHeaders(BaseHeaders)
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/amazon/http")
	restyutil.InstrumentClient(client, restyInstrumentOutput)
	return client, nil
}

// loadCookies seeds the jar from the persisted cookie file. Absence is not
// an error, it just means a fresh session.
func (s *Session) loadCookies() error {
	raw, err := os.ReadFile(s.cookieJarPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var stored map[string]string
	err = json.Unmarshal(raw, &stored)
	if err != nil {
		return err
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for name, value := range stored {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	s.http.GetClient().Jar.SetCookies(s.baseUrl, cookies)
	return nil
}

// persistCookies rewrites the whole cookie file after every request.
// Overwrite semantics: delete then write, never a partial merge.
func (s *Session) persistCookies() error {
	stored := map[string]string{}
	for _, c := range s.http.GetClient().Jar.Cookies(s.baseUrl) {
		stored[c.Name] = c.Value
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(s.cookieJarPath), 0700)
	if err != nil {
		return err
	}
	err = os.Remove(s.cookieJarPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(s.cookieJarPath, raw, 0600)
}

func (s *Session) removeCookieFile() error {
	err := os.Remove(s.cookieJarPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type RequestOptions struct {
	Headers     map[string]string
	FormData    url.Values
	QueryParams url.Values
}

// Request executes the call on the shared client, replaces the last
// response and last parsed document and persists the cookie jar. With the
// debug flag set the raw body is additionally captured to a numbered file.
func (s *Session) Request(ctx context.Context, method, endpoint string, opts *RequestOptions) (*resty.Response, error) {
	ctx, span := tracer.Start(ctx, "session:Request")
	defer span.End()

	req := s.http.R().SetContext(ctx)
	if opts != nil {
		for k, v := range opts.Headers {
			req.SetHeader(k, v)
		}
		if opts.FormData != nil {
			req.SetFormDataFromValues(opts.FormData)
		}
		if opts.QueryParams != nil {
			req.SetQueryParamsFromValues(opts.QueryParams)
		}
	}

	slog.DebugContext(ctx, "request", "method", method, "url", endpoint)

	res, err := req.Execute(method, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse response html")
		return nil, err
	}
	s.lastResponse = res
	s.lastDoc = doc

	err = s.persistCookies()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist cookies")
		return nil, err
	}

	slog.DebugContext(ctx, "response", "url", s.LastResponseUrl(), "status", res.StatusCode())

	if s.debug {
		captured, err := s.capture.Write(s.LastResponseUrl(), res.Body())
		if err != nil {
			slog.WarnContext(ctx, "failed to capture response", "err", err)
		} else {
			slog.DebugContext(ctx, "response captured", "file", captured)
		}
	}

	return res, nil
}

func (s *Session) Get(ctx context.Context, endpoint string, opts *RequestOptions) (*resty.Response, error) {
	return s.Request(ctx, http.MethodGet, endpoint, opts)
}

func (s *Session) Post(ctx context.Context, endpoint string, opts *RequestOptions) (*resty.Response, error) {
	return s.Request(ctx, http.MethodPost, endpoint, opts)
}

// AuthCookiesStored reports whether both the session-token and the primary
// auth cookie are present in the jar, a fast-path authenticated check that
// is independent of page content.
func (s *Session) AuthCookiesStored() bool {
	var hasToken, hasPrimary bool
	for _, c := range s.http.GetClient().Jar.Cookies(s.baseUrl) {
		switch c.Name {
		case sessionTokenCookie:
			hasToken = c.Value != ""
		case primaryAuthCookie:
			hasPrimary = c.Value != ""
		}
	}
	return hasToken && hasPrimary
}

func (s *Session) IsAuthenticated() bool {
	return s.authenticated
}

// LastResponse returns the response of the most recent request on this
// session, nil before the first request.
func (s *Session) LastResponse() *resty.Response {
	return s.lastResponse
}

// LastDocument returns the parsed form of the last response.
func (s *Session) LastDocument() *goquery.Document {
	return s.lastDoc
}

// LastResponseUrl is the final url of the last response, after redirects.
func (s *Session) LastResponseUrl() string {
	if s.lastResponse == nil || s.lastResponse.RawResponse == nil || s.lastResponse.RawResponse.Request == nil {
		return ""
	}
	return s.lastResponse.RawResponse.Request.URL.String()
}

// resolveUrl turns a possibly-relative form action into an absolute url
// against the last response, falling back to the session base url.
func (s *Session) resolveUrl(href string) string {
	base := s.baseUrl
	if s.lastResponse != nil && s.lastResponse.RawResponse != nil && s.lastResponse.RawResponse.Request != nil {
		base = s.lastResponse.RawResponse.Request.URL
	}
	link, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(link).String()
}

// fetchRaw downloads a resource (captcha images) on the shared client
// without touching the last response or parsed document.
func (s *Session) fetchRaw(ctx context.Context, rawUrl string) ([]byte, error) {
	res, err := s.http.R().SetContext(ctx).Get(rawUrl)
	if err != nil {
		return nil, err
	}
	return res.Body(), nil
}

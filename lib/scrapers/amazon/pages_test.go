package amazon

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
)

// scriptedIO plays back queued prompt answers and records every
// interaction, standing in for the human operator.
type scriptedIO struct {
	answers []string
	echoes  []string
	prompts int
}

func (io *scriptedIO) Echo(msg string) {
	io.echoes = append(io.echoes, msg)
}

func (io *scriptedIO) Prompt(msg string) (string, error) {
	if io.prompts >= len(io.answers) {
		return "", fmt.Errorf("unexpected prompt: %s", msg)
	}
	answer := io.answers[io.prompts]
	io.prompts++
	return answer, nil
}

// countingServer tallies every request hitting the canned storefront.
type countingServer struct {
	*httptest.Server
	mux *http.ServeMux

	mu   sync.Mutex
	hits int
}

func newCountingServer(t *testing.T) *countingServer {
	s := &countingServer{mux: http.NewServeMux()}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits++
		s.mu.Unlock()
		s.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *countingServer) Hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

func newTestSession(t *testing.T, server *countingServer, io IO) *Session {
	t.Helper()
	return newTestSessionOptions(t, server, SessionOptions{IO: io})
}

func newTestSessionOptions(t *testing.T, server *countingServer, opts SessionOptions) *Session {
	t.Helper()
	if opts.Username == "" {
		opts.Username = "some-username"
	}
	if opts.Password == "" {
		opts.Password = "some-password"
	}
	if opts.CookieJarPath == "" {
		opts.CookieJarPath = filepath.Join(t.TempDir(), "cookies.json")
	}
	opts.BaseUrl = server.URL

	s, err := NewSession(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

const signInPage = `<html><body>
<p>Hello, sign in</p>
<form name="signIn" method="post" action="/ap/signin">
	<input type="hidden" name="appActionToken" value="token-1" />
	<input type="hidden" name="workflowState" value="state-1" />
	<input type="email" name="email" />
	<input type="password" name="password" />
</form>
</body></html>`

const signInErrorPage = `<html><body>
<p>Hello, sign in</p>
<div id="auth-error-message-box"><span>There was a problem. Your password is incorrect</span></div>
<form name="signIn" method="post" action="/ap/signin">
	<input type="hidden" name="appActionToken" value="token-2" />
	<input type="email" name="email" />
	<input type="password" name="password" />
</form>
</body></html>`

const authenticatedPage = `<html><body>
<div id="nav-item-signout">Sign Out</div>
<div class="your-orders">Your Orders</div>
</body></html>`

const mfaPage = `<html><body>
<p>Hello, sign in</p>
<form id="auth-mfa-form" method="post" action="/ap/signin">
	<input type="hidden" name="workflowState" value="mfa-state" />
	<input type="tel" name="otpCode" />
</form>
</body></html>`

const deviceSelectPage = `<html><body>
<p>Hello, sign in</p>
<form id="auth-select-device-form" method="post" action="/ap/signin">
	<input type="hidden" name="workflowState" value="device-state" />
	<label><input type="radio" name="otpDeviceContext" value="device-a" /> Text to phone ending in 123</label>
	<label><input type="radio" name="otpDeviceContext" value="device-b" /> Text to phone ending in 456</label>
</form>
</body></html>`

const otpRenewalPage = `<html><body>
<p>Hello, sign in</p>
<p>Your one-time passcode expired, we need to send a new one.</p>
<form id="auth-mfa-resend-otp-form" method="post" action="/ap/signin">
	<input type="hidden" name="workflowState" value="resend-state" />
</form>
</body></html>`

func captchaAPage(imageUrl string) string {
	return fmt.Sprintf(`<html><body>
<p>Hello, sign in</p>
<form class="cvf-widget-form cvf-widget-form-captcha" method="post" action="verify">
	<input type="hidden" name="cvf_captcha_captcha_action" value="verifyCaptcha" />
	<input type="hidden" name="cvf_captcha_captcha_token" value="captcha-token" />
	<input type="hidden" name="cvf_captcha_captcha_type" value="imageCaptcha" />
	<input type="hidden" name="verifyToken" value="s|verify-token" />
	<input type="hidden" name="clientContext" value="132-0000000-0000000" />
	<img alt="captcha" src="%s" />
	<input type="text" name="cvf_captcha_input" />
</form>
</body></html>`, imageUrl)
}

func captchaBPage(imageUrl string) string {
	return fmt.Sprintf(`<html><body>
<p>Hello, sign in</p>
<form method="get" action="/errors/validateCaptcha">
	<input type="hidden" name="amzn" value="token-b" />
	<input type="hidden" name="amzn-r" value="/ap/signin" />
	<img src="%s" />
	<input type="text" id="captchacharacters" name="field-keywords" />
</form>
</body></html>`, imageUrl)
}

const unknownPage = `<html><body>
<p>Hello, sign in</p>
<p>We are working on the problem and will be back shortly.</p>
</body></html>`

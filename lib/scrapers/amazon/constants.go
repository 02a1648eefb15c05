package amazon

const DefaultBaseUrl = "https://www.amazon.com"

// Entry points that are fixed, everything else is extracted from hidden
// fields and form actions on previously fetched pages.
const (
	SignInPath         = "/gp/sign-in.html"
	SignInSubmitPath   = "/ap/signin"
	SignOutPath        = "/gp/sign-out.html"
	CaptchaVerifyPath  = "/ap/cvf/verify"
	CaptchaRefreshPath = "/errors/validateCaptcha"
	CaptchaOtpPath     = "/ap/cvf/approval/verifyOtp"
	OrderHistoryPath   = "/gp/css/order-history"
)

// The pair of cookies whose joint presence is treated as proof of an
// already-authenticated session.
const (
	sessionTokenCookie = "session-token"
	primaryAuthCookie  = "x-main"
)

// Markers used to derive the authenticated state from page content. The
// signout nav entry is injected dynamically so it is matched on raw text
// rather than through a selector.
const (
	signedOutMarker = "Hello, sign in"
	signedInMarker  = "nav-item-signout"
)

const (
	signInFormSelector          = "form[name=signIn]"
	signInErrorSelector         = "div#auth-error-message-box"
	mfaDeviceSelectFormSelector = "form#auth-select-device-form"
	mfaFormSelector             = "form#auth-mfa-form"
	mfaErrorSelector            = "div#auth-error-message-box"
	captchaFormSelector         = "form.cvf-widget-form-captcha"
	captchaErrorSelector        = "div.cvf-widget-alert"
	captchaCharactersSelector   = "input#captchacharacters"
	captchaOtpFormSelector      = "form#verification-code-form"
	otpRenewalFormSelector      = "form#auth-mfa-resend-otp-form"
)

// Defaults merged into every request at the client level, caller-supplied
// request headers win on key collision.
var BaseHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}

package amazon

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"amazonorders/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// AuthForm is one step handler in the login flow: it recognizes exactly one
// kind of authentication page and knows how to resolve it. Match must treat
// absent elements as a non-match, never an error. Fill extracts the hidden
// fields verbatim and overlays the fields the handler is responsible for,
// prompting the operator where a human decision is needed. Submit issues
// the next request through the session.
type AuthForm interface {
	Match(doc *goquery.Document) bool
	Fill(ctx context.Context, s *Session) (url.Values, error)
	Submit(ctx context.Context, s *Session, data url.Values) error
}

// DefaultAuthForms returns the step handlers in declared priority order:
// when two handlers could structurally match the same page, the earlier one
// wins. Callers substitute their own ordered set for testing.
func DefaultAuthForms() []AuthForm {
	return []AuthForm{
		NewSignInForm(),
		NewMfaDeviceSelectForm(),
		NewMfaForm(),
		NewOtpRenewalForm(),
		NewCaptchaForm(),
		NewTextCaptchaForm(),
		NewCaptchaOtpForm(),
	}
}

// baseForm carries the matched selection between Match and Fill/Submit.
type baseForm struct {
	name          string
	selector      string
	errorSelector string
	form          *goquery.Selection
	doc           *goquery.Document
}

func (f *baseForm) Match(doc *goquery.Document) bool {
	f.form = nil
	f.doc = doc
	if doc == nil {
		return false
	}
	sel := doc.Find(f.selector)
	if sel.Length() == 0 {
		return false
	}
	f.form = sel.First()
	return true
}

// echoError surfaces the page's error banner (wrong password, wrong captcha
// characters) to the operator before re-filling.
func (f *baseForm) echoError(s *Session) {
	if f.errorSelector == "" || f.doc == nil {
		return
	}
	banner := f.doc.Find(f.errorSelector)
	if banner.Length() == 0 {
		return
	}
	if msg := htmlutil.CleanText(banner); msg != "" {
		s.io.Echo(msg)
	}
}

// action resolves the form's action attribute, falling back to a fixed
// endpoint when the attribute is absent.
func (f *baseForm) action(s *Session, fallback string) string {
	href := f.form.AttrOr("action", "")
	if href == "" {
		return fallback
	}
	return s.resolveUrl(href)
}

// hiddenFields reads every input on the matched form verbatim.
func (f *baseForm) hiddenFields() url.Values {
	return htmlutil.FormValues(f.form)
}

// fetchCaptchaImage downloads the captcha image embedded in the form and
// hands it to the operator. The image lives on a separate host, its url is
// always absolute.
func (f *baseForm) fetchCaptchaImage(ctx context.Context, s *Session) error {
	src := f.form.Find("img").First().AttrOr("src", "")
	if src == "" {
		return newFormFieldMissingError(f.name, "img")
	}

	img, err := s.fetchRaw(ctx, src)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp("", "amazon-captcha-*.jpg")
	if err != nil {
		return err
	}
	defer tmp.Close()
	_, err = tmp.Write(img)
	if err != nil {
		return err
	}

	s.io.Echo(fmt.Sprintf("captcha image saved to %s (source: %s)", tmp.Name(), src))
	return nil
}

// SignInForm posts the credentials plus every hidden field found on the
// sign-in page. On wrong credentials the storefront re-renders the same
// page with an error banner, the orchestrator simply re-matches this
// handler on the next iteration.
type SignInForm struct {
	baseForm
}

func NewSignInForm() *SignInForm {
	return &SignInForm{baseForm{
		name:          "SignInForm",
		selector:      signInFormSelector,
		errorSelector: signInErrorSelector,
	}}
}

func (f *SignInForm) Fill(ctx context.Context, s *Session) (url.Values, error) {
	f.echoError(s)

	data := f.hiddenFields()
	data.Set("email", s.username)
	data.Set("password", s.password)
	return data, nil
}

func (f *SignInForm) Submit(ctx context.Context, s *Session, data url.Values) error {
	_, err := s.Post(ctx, f.action(s, SignInSubmitPath), &RequestOptions{FormData: data})
	return err
}

// MfaDeviceSelectForm handles the page listing the one-time-passcode
// delivery targets (phone suffixes and the like), prompting the operator to
// choose one by index.
type MfaDeviceSelectForm struct {
	baseForm
}

func NewMfaDeviceSelectForm() *MfaDeviceSelectForm {
	return &MfaDeviceSelectForm{baseForm{
		name:     "MfaDeviceSelectForm",
		selector: mfaDeviceSelectFormSelector,
	}}
}

func (f *MfaDeviceSelectForm) Fill(ctx context.Context, s *Session) (url.Values, error) {
	choices := f.form.Find("input[name=otpDeviceContext]")
	if choices.Length() == 0 {
		return nil, newFormFieldMissingError(f.name, "otpDeviceContext")
	}

	contexts := make([]string, 0, choices.Length())
	choices.Each(func(i int, input *goquery.Selection) {
		contexts = append(contexts, input.AttrOr("value", ""))
		label := htmlutil.CleanText(input.Parent())
		s.io.Echo(fmt.Sprintf("%d: %s", i+1, label))
	})

	var chosen string
	for {
		answer, err := promptNonEmpty(s.io, "Choose where to send the one-time passcode")
		if err != nil {
			return nil, err
		}
		idx, err := strconv.Atoi(answer)
		if err == nil && idx >= 1 && idx <= len(contexts) {
			chosen = contexts[idx-1]
			break
		}
		s.io.Echo(fmt.Sprintf("enter a number between 1 and %d", len(contexts)))
	}

	data := f.hiddenFields()
	data.Set("otpDeviceContext", chosen)
	return data, nil
}

func (f *MfaDeviceSelectForm) Submit(ctx context.Context, s *Session, data url.Values) error {
	_, err := s.Post(ctx, f.action(s, SignInSubmitPath), &RequestOptions{FormData: data})
	return err
}

// MfaForm handles generic code-entry challenges: the OTP page after device
// selection and, with the alternate selector, the post-captcha push
// verification page.
type MfaForm struct {
	baseForm
	fallbackAction string
}

func NewMfaForm() *MfaForm {
	return &MfaForm{
		baseForm: baseForm{
			name:          "MfaForm",
			selector:      mfaFormSelector,
			errorSelector: mfaErrorSelector,
		},
		fallbackAction: SignInSubmitPath,
	}
}

// NewCaptchaOtpForm is the MfaForm variant for the verification-code page
// that some captcha flows end on, it posts to the cvf approval endpoint.
func NewCaptchaOtpForm() *MfaForm {
	return &MfaForm{
		baseForm: baseForm{
			name:     "CaptchaOtpForm",
			selector: captchaOtpFormSelector,
		},
		fallbackAction: CaptchaOtpPath,
	}
}

func (f *MfaForm) Fill(ctx context.Context, s *Session) (url.Values, error) {
	f.echoError(s)

	code, err := promptNonEmpty(s.io, "Enter the one-time passcode sent to your device")
	if err != nil {
		return nil, err
	}

	data := f.hiddenFields()
	data.Set("otpCode", code)
	data.Set("rememberDevice", "")
	return data, nil
}

func (f *MfaForm) Submit(ctx context.Context, s *Session, data url.Values) error {
	_, err := s.Post(ctx, f.action(s, f.fallbackAction), &RequestOptions{FormData: data})
	return err
}

// CaptchaForm handles the cvf widget image captcha: download the image,
// show it to the operator, then post their answer together with every
// hidden verification token as a form-encoded body.
type CaptchaForm struct {
	baseForm
}

func NewCaptchaForm() *CaptchaForm {
	return &CaptchaForm{baseForm{
		name:          "CaptchaForm",
		selector:      captchaFormSelector,
		errorSelector: captchaErrorSelector,
	}}
}

func (f *CaptchaForm) Fill(ctx context.Context, s *Session) (url.Values, error) {
	f.echoError(s)

	err := f.fetchCaptchaImage(ctx, s)
	if err != nil {
		return nil, err
	}
	answer, err := promptNonEmpty(s.io, "Enter the characters shown in the image")
	if err != nil {
		return nil, err
	}

	data := f.hiddenFields()
	data.Set("cvf_captcha_input", answer)
	return data, nil
}

func (f *CaptchaForm) Submit(ctx context.Context, s *Session, data url.Values) error {
	_, err := s.Post(ctx, f.action(s, CaptchaVerifyPath), &RequestOptions{FormData: data})
	return err
}

// TextCaptchaForm handles the other captcha layout, recognized by its
// captchacharacters input. Submission differs from CaptchaForm: everything,
// answer and hidden tokens alike, goes into the query string of a GET.
type TextCaptchaForm struct {
	baseForm
}

func NewTextCaptchaForm() *TextCaptchaForm {
	return &TextCaptchaForm{baseForm{
		name: "TextCaptchaForm",
	}}
}

func (f *TextCaptchaForm) Match(doc *goquery.Document) bool {
	f.form = nil
	f.doc = doc
	if doc == nil {
		return false
	}
	input := doc.Find(captchaCharactersSelector)
	if input.Length() == 0 {
		return false
	}
	form := input.First().Closest("form")
	if form.Length() == 0 {
		return false
	}
	f.form = form
	return true
}

func (f *TextCaptchaForm) Fill(ctx context.Context, s *Session) (url.Values, error) {
	err := f.fetchCaptchaImage(ctx, s)
	if err != nil {
		return nil, err
	}
	answer, err := promptNonEmpty(s.io, "Enter the characters shown in the image")
	if err != nil {
		return nil, err
	}

	data := f.hiddenFields()
	data.Set("field-keywords", answer)
	return data, nil
}

func (f *TextCaptchaForm) Submit(ctx context.Context, s *Session, data url.Values) error {
	_, err := s.Get(ctx, f.action(s, CaptchaRefreshPath), &RequestOptions{QueryParams: data})
	return err
}

// OtpRenewalForm matches the transitional page shown when a delivered code
// expired. It never prompts, resubmitting is enough to trigger a fresh code
// and hand control back to MfaForm on the next iteration.
type OtpRenewalForm struct {
	baseForm
}

func NewOtpRenewalForm() *OtpRenewalForm {
	return &OtpRenewalForm{baseForm{
		name:     "OtpRenewalForm",
		selector: otpRenewalFormSelector,
	}}
}

func (f *OtpRenewalForm) Fill(ctx context.Context, s *Session) (url.Values, error) {
	return f.hiddenFields(), nil
}

func (f *OtpRenewalForm) Submit(ctx context.Context, s *Session, data url.Values) error {
	_, err := s.Post(ctx, f.action(s, SignInSubmitPath), &RequestOptions{FormData: data})
	return err
}

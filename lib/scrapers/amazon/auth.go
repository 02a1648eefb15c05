package amazon

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/codes"
)

// Login drives the page-driven auth flow until the session is
// authenticated or the attempt budget is exhausted. The state is never
// stored, each iteration re-derives it from the auth cookies, the
// signed-in/signed-out markers of the last response and whichever step
// handler matches the last parsed document. Invoking Login on an already
// authenticated session converges immediately on the marker check.
func (s *Session) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session:Login")
	defer span.End()

	_, err := s.Get(ctx, SignInPath, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch sign-in page")
		return err
	}

	// stale local session data makes the storefront bounce us back to the
	// sign-in page even though auth cookies are present. log out once to
	// clear it and start over.
	if s.AuthCookiesStored() && stripQuery(s.LastResponseUrl()) == s.resolveUrl(SignInSubmitPath) {
		slog.DebugContext(ctx, "stale session detected, logging out")
		err = s.Logout(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to log out stale session")
			return err
		}
		_, err = s.Get(ctx, SignInPath, nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to re-fetch sign-in page")
			return err
		}
	}

	attempts := 0
	for !s.authenticated && attempts < s.maxAuthAttempts {
		if s.AuthCookiesStored() || s.signedInMarkers() {
			s.authenticated = true
			break
		}

		var matched AuthForm
		for _, form := range s.authForms {
			if form.Match(s.lastDoc) {
				matched = form
				break
			}
		}

		if matched == nil {
			err := s.classifyFailure()
			span.RecordError(err)
			span.SetStatus(codes.Error, "no step handler matched")
			return err
		}

		data, err := matched.Fill(ctx, s)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fill form")
			return err
		}
		err = matched.Submit(ctx, s, data)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to submit form")
			return err
		}

		attempts++
	}

	if !s.authenticated {
		err := &AuthError{
			Kind:    KindMaxAttemptsExceeded,
			Message: "max authentication flow attempts reached",
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Message)
		return err
	}

	return nil
}

// signedInMarkers reports whether the last response looks like a page
// served to a signed-in customer. The signout nav entry is injected
// dynamically, so this checks raw text instead of the parsed document.
func (s *Session) signedInMarkers() bool {
	if s.lastResponse == nil {
		return false
	}
	body := string(s.lastResponse.Body())
	return !strings.Contains(body, signedOutMarker) && strings.Contains(body, signedInMarker)
}

// classifyFailure turns an unmatched page into a classified AuthError:
// http success with unrecognized content, client-side failure, or a
// transient server-side failure the caller should wait out.
func (s *Session) classifyFailure() *AuthError {
	debugHint := " To capture the page to a file, enable the Debug option."
	if s.debug {
		debugHint = ""
	}

	pageUrl := s.LastResponseUrl()
	status := 0
	if s.lastResponse != nil {
		status = s.lastResponse.StatusCode()
	}

	switch {
	case status >= 500:
		return &AuthError{
			Kind:   KindServerError,
			Url:    pageUrl,
			Status: status,
			Message: fmt.Sprintf(
				"the page %s returned %d, the storefront had an error (or may be temporarily blocking your requests), wait a bit before trying again.%s",
				pageUrl, status, debugHint),
		}
	case status >= 400:
		return &AuthError{
			Kind:   KindClientError,
			Url:    pageUrl,
			Status: status,
			Message: fmt.Sprintf(
				"the page %s returned %d.%s", pageUrl, status, debugHint),
		}
	default:
		return &AuthError{
			Kind:   KindUnrecognizedPage,
			Url:    pageUrl,
			Status: status,
			Message: fmt.Sprintf(
				"this is an unknown page, or its parsed contents don't match a known auth flow step: %s.%s",
				pageUrl, debugHint),
		}
	}
}

// Logout signs the session out remotely, removes the persisted cookie file
// and replaces the underlying transport with a fresh one.
func (s *Session) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session:Logout")
	defer span.End()

	_, err := s.Get(ctx, SignOutPath, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch sign-out page")
		return err
	}

	err = s.removeCookieFile()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove cookie file")
		return err
	}

	s.http.GetClient().CloseIdleConnections()
	s.http, err = s.newHttpClient()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to replace http client")
		return err
	}

	s.authenticated = false
	return nil
}

func stripQuery(rawUrl string) string {
	if idx := strings.IndexByte(rawUrl, '?'); idx >= 0 {
		return rawUrl[:idx]
	}
	return rawUrl
}

// Package auth drives the console's phone and one-time-code sign-in.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wbreports/internal/browser"
	"wbreports/internal/console"
	apperrors "wbreports/internal/errors"
	"wbreports/internal/infrastructure"
	"wbreports/internal/pagestate"
)

// Step names a stage of the sign-in sequence.
type Step string

const (
	StepEnterIdentity    Step = "enter_identity"
	StepSubmitIdentity   Step = "submit_identity"
	StepEnterFirstCode   Step = "enter_first_code"
	StepSubmitFirstCode  Step = "submit_first_code"
	StepEnterSecondCode  Step = "enter_second_code"
	StepSubmitSecondCode Step = "submit_second_code"
	StepVerify           Step = "verify"
)

// StateDetector reports the current page state.
type StateDetector interface {
	Detect(ctx context.Context) pagestate.State
}

// Flow signs in with a phone number and up to two one-time codes.
type Flow struct {
	actor    *browser.Actor
	detector StateDetector
	codes    CodeProvider
	metrics  *infrastructure.RunMetrics
	logger   *slog.Logger

	// optionalWait bounds the lookup of controls that may be absent.
	optionalWait time.Duration
}

// NewFlow returns a sign-in flow.
func NewFlow(actor *browser.Actor, detector StateDetector, codes CodeProvider, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		actor:        actor,
		detector:     detector,
		codes:        codes,
		logger:       logger.With(slog.String("component", "auth")),
		optionalWait: 3 * time.Second,
	}
}

// WithMetrics records every attempt on m.
func (f *Flow) WithMetrics(m *infrastructure.RunMetrics) *Flow {
	f.metrics = m
	return f
}

// WithOptionalWait changes how long optional controls are looked for.
func (f *Flow) WithOptionalWait(d time.Duration) *Flow {
	f.optionalWait = d
	return f
}

func stepError(step Step, cause error) error {
	return apperrors.NewAuthError(fmt.Sprintf("sign-in step %s failed", step), cause).
		WithContext("step", string(step))
}

// Authenticate runs the sign-in sequence on the current page. Missing
// required inputs fail at once. Succeeds unless the page is still a sign-in
// page afterwards.
func (f *Flow) Authenticate(ctx context.Context, phone string) (err error) {
	if phone == "" {
		return apperrors.NewConfigError("phone number is not configured", nil).
			WithContext("key", "WB_AUTH_PHONE")
	}
	defer func() {
		f.metrics.RecordAuthAttempt(ctx, err == nil)
	}()

	f.logger.InfoContext(ctx, "Signing in", slog.String("step", string(StepEnterIdentity)))
	if err := f.actor.Type(ctx, console.PhoneInput, phone, true); err != nil {
		return stepError(StepEnterIdentity, err)
	}

	if _, err := f.actor.ClickIfPresent(ctx, console.SubmitPhone, f.optionalWait); err != nil {
		return stepError(StepSubmitIdentity, err)
	}

	if err := f.enterCode(ctx, StepEnterFirstCode, console.FirstCodeInput, "Enter the SMS code", true); err != nil {
		return err
	}
	if _, err := f.actor.ClickIfPresent(ctx, console.SubmitFirstCode, f.optionalWait); err != nil {
		return stepError(StepSubmitFirstCode, err)
	}

	_, present, err := console.SecondCodeInput.Optional(ctx, f.actor.Driver(), f.optionalWait)
	if err != nil {
		return stepError(StepEnterSecondCode, err)
	}
	if present {
		if err := f.enterCode(ctx, StepEnterSecondCode, console.SecondCodeInput, "Enter the second confirmation code", false); err != nil {
			return err
		}
		if _, err := f.actor.ClickIfPresent(ctx, console.SubmitSecondCode, f.optionalWait); err != nil {
			return stepError(StepSubmitSecondCode, err)
		}
	} else {
		f.logger.DebugContext(ctx, "No second code requested")
	}

	if err := f.actor.WaitForPageLoad(ctx); err != nil {
		return stepError(StepVerify, err)
	}
	state := f.detector.Detect(ctx)
	f.logger.InfoContext(ctx, "Sign-in finished", slog.String("state", state.String()))
	if state == pagestate.AuthRequired {
		return apperrors.NewAuthError("authentication did not complete", nil).
			WithContext("step", string(StepVerify))
	}
	return nil
}

// enterCode waits for the code input, asks the provider, and types the code.
// When mustExist is false the input is known to be present already.
func (f *Flow) enterCode(ctx context.Context, step Step, input browser.Locator, prompt string, mustExist bool) error {
	if mustExist {
		if _, err := input.Find(ctx, f.actor.Driver(), f.actor.Wait()); err != nil {
			return stepError(step, err)
		}
	}

	code, err := f.codes.Code(ctx, prompt)
	if err != nil {
		return stepError(step, err)
	}
	if code == "" {
		return stepError(step, apperrors.NewAppValidationError("empty code"))
	}

	if err := f.actor.Type(ctx, input, code, true); err != nil {
		return stepError(step, err)
	}
	return nil
}

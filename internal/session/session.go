// Package session holds the per-user state of an in-progress search
// dialog. A session is a tagged union over the four dialog steps so each
// step only carries the fields that are meaningful to it.
package session

import (
	"time"

	"imgseekbot/internal/engine"
)

// Step names the dialog step a session is waiting on.
type Step string

const (
	StepAwaitEngine      Step = "await_engine"
	StepAwaitImage       Step = "await_image"
	StepAwaitBoth        Step = "await_both"
	StepAwaitTextConfirm Step = "await_text_confirm"
)

// Session is the sealed union of dialog step states.
type Session interface {
	Step() Step
	LastActivity() time.Time
	// Touch records state-relevant activity at the given instant.
	Touch(now time.Time)

	sealed()
}

type activity struct {
	lastActivity time.Time
}

func (a *activity) LastActivity() time.Time { return a.lastActivity }
func (a *activity) Touch(now time.Time)     { a.lastActivity = now }
func (a *activity) sealed()                 {}

// AwaitEngine waits for a valid engine name. It may already hold an
// image captured from the trigger command.
type AwaitEngine struct {
	activity
	Image           []byte
	InvalidAttempts int
}

func (*AwaitEngine) Step() Step { return StepAwaitEngine }

// AwaitImage waits for an image; the engine is fixed for the rest of the
// session's lifetime.
type AwaitImage struct {
	activity
	Engine engine.ID
}

func (*AwaitImage) Step() Step { return StepAwaitImage }

// AwaitBoth accumulates an engine and an image in any order.
type AwaitBoth struct {
	activity
	Engine          engine.ID // empty until chosen
	Image           []byte
	InvalidAttempts int
}

func (*AwaitBoth) Step() Step { return StepAwaitBoth }

// AwaitTextConfirm holds a finished search result awaiting the user's
// request for the text form.
type AwaitTextConfirm struct {
	activity
	ResultText string
}

func (*AwaitTextConfirm) Step() Step { return StepAwaitTextConfirm }

// NewAwaitEngine creates the step with the given attempt counter and
// optional preloaded image.
func NewAwaitEngine(now time.Time, image []byte, invalidAttempts int) *AwaitEngine {
	s := &AwaitEngine{Image: image, InvalidAttempts: invalidAttempts}
	s.Touch(now)
	return s
}

// NewAwaitImage creates the step for a session whose engine is decided.
func NewAwaitImage(now time.Time, eng engine.ID) *AwaitImage {
	s := &AwaitImage{Engine: eng}
	s.Touch(now)
	return s
}

// NewAwaitBoth creates the accumulating step.
func NewAwaitBoth(now time.Time, eng engine.ID, image []byte) *AwaitBoth {
	s := &AwaitBoth{Engine: eng, Image: image}
	s.Touch(now)
	return s
}

// NewAwaitTextConfirm creates the post-search confirmation step.
func NewAwaitTextConfirm(now time.Time, resultText string) *AwaitTextConfirm {
	s := &AwaitTextConfirm{ResultText: resultText}
	s.Touch(now)
	return s
}

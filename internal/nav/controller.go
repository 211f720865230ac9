package nav

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/yamui/internal/apperr"
)

// Renderer draws screens and modals for the controller.
type Renderer interface {
	ScreenExists(name string) bool
	RenderScreen(name string) error
	// ShowModal builds an overlay from a component and returns its handle.
	ShowModal(component string) (any, error)
	CloseModal(handle any)
}

// Modal is one open overlay.
type Modal struct {
	Component string
	Handle    any
}

// Controller owns the screen stack and the modal stack. Every mutation goes
// through the queue, so requests made while a screen renders run after it.
type Controller struct {
	r      Renderer
	q      *Queue
	logger *slog.Logger
	stack  []string
	modals []Modal
}

// NewController returns a controller with empty stacks.
func NewController(r Renderer, opts ...QueueOption) *Controller {
	c := &Controller{r: r}
	c.q = NewQueue(c.execute, opts...)
	c.logger = c.q.logger
	return c
}

// Queue exposes the controller's request queue.
func (c *Controller) Queue() *Queue { return c.q }

// Submit runs or defers r.
func (c *Controller) Submit(r Request) error { return c.q.Submit(r) }

// Goto replaces the top screen, or pushes when the stack is empty.
func (c *Controller) Goto(screen string) error { return c.q.Submit(Goto(screen)) }

// Push adds a screen on top.
func (c *Controller) Push(screen string) error { return c.q.Submit(Push(screen)) }

// Replace replaces the top screen, or pushes when the stack is empty.
func (c *Controller) Replace(screen string) error { return c.q.Submit(Replace(screen)) }

// Pop returns to the previous screen. The root screen is never popped.
func (c *Controller) Pop() error { return c.q.Submit(Pop()) }

// ShowModal opens a modal from component.
func (c *Controller) ShowModal(component string) error {
	return c.q.Submit(ShowModal(component))
}

// CloseModal closes the top modal. It is a no-op without open modals.
func (c *Controller) CloseModal() error { return c.q.Submit(CloseModal()) }

func (c *Controller) execute(r Request) error {
	switch r.Type {
	case RequestGoto, RequestReplace:
		if err := c.checkScreen(r.Arg); err != nil {
			return err
		}
		prev := c.snapshot()
		if len(c.stack) == 0 {
			c.stack = append(c.stack, r.Arg)
		} else {
			c.stack[len(c.stack)-1] = r.Arg
		}
		return c.renderOrRestore(prev)
	case RequestPush:
		if err := c.checkScreen(r.Arg); err != nil {
			return err
		}
		prev := c.snapshot()
		c.stack = append(c.stack, r.Arg)
		return c.renderOrRestore(prev)
	case RequestPop:
		if len(c.stack) <= 1 {
			return fmt.Errorf("nav: pop with depth %d: %w", len(c.stack), apperr.ErrCannotPopRoot)
		}
		prev := c.snapshot()
		c.stack = c.stack[:len(c.stack)-1]
		return c.renderOrRestore(prev)
	case RequestShowModal:
		return c.openModal(r.Arg)
	case RequestCloseModal:
		c.closeTopModal()
		return nil
	}
	return fmt.Errorf("nav: %s: %w", r, apperr.ErrUnsupported)
}

func (c *Controller) checkScreen(name string) error {
	if name == "" || !c.r.ScreenExists(name) {
		return fmt.Errorf("nav: screen %q: %w", name, apperr.ErrScreenNotFound)
	}
	return nil
}

func (c *Controller) snapshot() []string {
	return append([]string(nil), c.stack...)
}

// renderOrRestore clears every modal and renders the new top screen. When
// the render cannot start or fails, the previous stack comes back and its top
// screen is drawn again.
func (c *Controller) renderOrRestore(prev []string) error {
	if err := c.q.BeginRender(); err != nil {
		c.stack = prev
		return err
	}
	c.closeAllModals()
	name := c.stack[len(c.stack)-1]
	renderErr := c.r.RenderScreen(name)
	if renderErr != nil {
		c.logger.Error("nav: render failed",
			slog.String("category", "nav"),
			slog.String("screen", name),
			slog.String("error", renderErr.Error()))
		c.stack = prev
		if top := c.Top(); top != "" {
			if err := c.r.RenderScreen(top); err != nil {
				c.logger.Error("nav: restore failed",
					slog.String("category", "nav"),
					slog.String("screen", top),
					slog.String("error", err.Error()))
			}
		}
	}
	drainErr := c.q.EndRender(renderErr == nil)
	return errors.Join(renderErr, drainErr)
}

func (c *Controller) openModal(component string) error {
	if component == "" {
		return fmt.Errorf("nav: modal: %w", apperr.ErrComponentNotFound)
	}
	if err := c.q.BeginRender(); err != nil {
		return err
	}
	h, err := c.r.ShowModal(component)
	if err == nil {
		c.modals = append(c.modals, Modal{Component: component, Handle: h})
	}
	drainErr := c.q.EndRender(err == nil)
	return errors.Join(err, drainErr)
}

func (c *Controller) closeTopModal() {
	if len(c.modals) == 0 {
		return
	}
	top := c.modals[len(c.modals)-1]
	c.modals = c.modals[:len(c.modals)-1]
	c.r.CloseModal(top.Handle)
}

func (c *Controller) closeAllModals() {
	for len(c.modals) > 0 {
		c.closeTopModal()
	}
}

// Stack returns screen names bottom-up.
func (c *Controller) Stack() []string { return c.snapshot() }

// Top returns the current screen, or "" before the first navigation.
func (c *Controller) Top() string {
	if len(c.stack) == 0 {
		return ""
	}
	return c.stack[len(c.stack)-1]
}

// Depth returns the number of screen frames.
func (c *Controller) Depth() int { return len(c.stack) }

// Modals returns the component names of open modals, bottom-up.
func (c *Controller) Modals() []string {
	out := make([]string, len(c.modals))
	for i, m := range c.modals {
		out[i] = m.Component
	}
	return out
}

// Reset closes every modal, clears the screen stack and drops pending
// requests.
func (c *Controller) Reset() {
	c.closeAllModals()
	c.stack = nil
	c.q.Reset()
}

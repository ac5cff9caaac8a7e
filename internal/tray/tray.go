// Package tray provides a system tray interface for the asana pose coach.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/asana/internal/app"
	"github.com/ayusman/asana/internal/pose"
)

// Tray represents the system tray application.
type Tray struct {
	onRestart   func()
	onDashboard func()
	onQuit      func()
	mu          sync.RWMutex
	last        app.Exercise

	// Menu items stored for later updates
	menuPose     *systray.MenuItem
	menuProgress *systray.MenuItem
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{}
}

// OnRestart sets the callback for the Restart menu item.
func (t *Tray) OnRestart(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRestart = fn
}

// OnDashboard sets the callback for the Open Dashboard menu item.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray loop.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
func (t *Tray) onReady() {
	systray.SetTitle("Asana")
	systray.SetTooltip("Asana pose coach")

	t.mu.Lock()
	t.menuPose = systray.AddMenuItem("Pose: none", "Active pose")
	t.menuPose.Disable()
	t.menuProgress = systray.AddMenuItem("Idle", "Hold progress")
	t.menuProgress.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuRestart := systray.AddMenuItem("Restart", "Restart the current pose")
	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Asana")

	t.render()

	go func() {
		for {
			select {
			case <-menuRestart.ClickedCh:
				t.call(func() func() { return t.onRestart })
			case <-menuDashboard.ClickedCh:
				t.call(func() func() { return t.onDashboard })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// call runs the callback selected by get outside the lock.
func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// Update shows ex in the menu. It is safe to call before the tray is ready
// and from the pipeline goroutine.
func (t *Tray) Update(ex app.Exercise) {
	t.mu.Lock()
	t.last = ex
	t.mu.Unlock()
	t.render()
}

func (t *Tray) render() {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuPose == nil {
		return
	}
	name := "none"
	if def, err := pose.Lookup(t.last.Pose); err == nil {
		name = def.Title
	}
	t.menuPose.SetTitle("Pose: " + name)
	t.menuProgress.SetTitle(ProgressLabel(t.last))
	systray.SetTitle(TitleLabel(t.last))
}

// ProgressLabel describes the hold progress of ex.
func ProgressLabel(ex app.Exercise) string {
	st := ex.Status
	switch {
	case st.Completed():
		return fmt.Sprintf("Done: %s", seconds(st.TargetMs))
	case !ex.Running:
		return "Idle"
	case st.Hold == pose.HoldAccumulating:
		return fmt.Sprintf("Holding %s / %s", seconds(st.ElapsedMs), seconds(st.TargetMs))
	case !st.Subject:
		return "Step into view"
	default:
		return "Get into position"
	}
}

// TitleLabel is the short text shown next to the tray icon.
func TitleLabel(ex app.Exercise) string {
	st := ex.Status
	switch {
	case st.Completed():
		return "Asana ✓"
	case ex.Running && st.Hold == pose.HoldAccumulating:
		return fmt.Sprintf("Asana %s", seconds(st.ElapsedMs))
	default:
		return "Asana"
	}
}

func seconds(ms int64) string {
	return fmt.Sprintf("%ds", ms/1000)
}

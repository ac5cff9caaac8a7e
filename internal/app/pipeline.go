package app

import (
	"github.com/sirupsen/logrus"

	"github.com/ayusman/asana/internal/detector"
	"github.com/ayusman/asana/internal/pose"
	"github.com/ayusman/asana/internal/store"
)

// tick pulls one frame and advances the engine. Nothing happens while no
// exercise is running, including after completion.
func (a *App) tick() {
	if !a.running || a.engine == nil || a.config.Source == nil {
		return
	}

	frame, err := a.config.Source.NextFrame()
	if err != nil {
		a.config.Metrics.RecordDetectorError()
		a.log.WithError(err).Debug("frame failed, counting nobody in view")
		frame = a.failedFrame(frame)
	} else {
		a.lastFrame, a.lastFrameAt = frame, a.now()
	}

	name := a.engine.Pose()
	observe := a.config.Metrics.ObserveTick()
	status := a.engine.Tick(frame)
	observe()

	if status.Dropped {
		a.config.Metrics.RecordDropped(name)
		return
	}
	a.config.Metrics.RecordTick(name, status.Pass, status.StableGood)

	for _, ev := range status.Events {
		a.logEvent(name, ev)
	}

	if status.Completed() {
		a.finish(store.SessionCompleted, status.ElapsedMs)
		a.closeSource()
	}
	a.publish(status)
}

// failedFrame turns a frame that could not be produced into one with nobody
// in view, so the hold timer still sees the failing tick. A frame the source
// stamped keeps its timestamp; otherwise wall time elapsed since the last
// good frame is added to that frame's timestamp.
func (a *App) failedFrame(frame detector.Frame) detector.Frame {
	width, height := frame.Width, frame.Height
	if width == 0 || height == 0 {
		width, height = a.lastFrame.Width, a.lastFrame.Height
	}

	ts := frame.TimestampMs
	if ts == 0 {
		if a.lastFrameAt.IsZero() {
			ts = a.now().UnixMilli()
		} else {
			ts = a.lastFrame.TimestampMs + a.now().Sub(a.lastFrameAt).Milliseconds()
		}
	}
	return detector.NoSubject(ts, width, height)
}

func (a *App) logEvent(name string, ev pose.Event) {
	entry := a.log.WithFields(logrus.Fields{
		"pose":      name,
		"session":   a.Current().SessionID,
		"event":     ev.Kind,
		"elapsedMs": ev.ElapsedMs,
	})

	switch ev.Kind {
	case pose.EventHoldCompleted:
		a.config.Metrics.RecordHoldCompleted(name)
		entry.Info("hold completed")
	case pose.EventHoldReset:
		a.config.Metrics.RecordHoldReset(name)
		entry.Info("hold reset")
	case pose.EventHoldStarted:
		entry.Debug("hold started")
	}
}

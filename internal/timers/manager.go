// Package timers implements the per-call Timer Manager: the silence/
// no-input timer that drives the 110→111→112 escalation ladder, a
// cancel-and-reschedule auto-hangup timer, and the playback watchdog that
// bounds how long a template broadcast is allowed to run before it is
// considered stuck.
//
// No repo in the reference pack imports a scheduling or cron library for
// per-call timers — the teacher's WebRTC streamer uses plain stdlib
// time.After/context deadlines throughout — so this package is built on
// stdlib time.Timer, following that same idiom.
package timers

import (
	"sync"
	"time"
)

// Default durations, named in spec §4.6/§4.8/§4.9.
const (
	NoInputInterval    = 2 * time.Second
	PlaybackWatchdog   = 10 * time.Second
	HangupAfter112     = 2 * time.Second
	HangupAfterDecline = 60 * time.Second
)

// Manager owns every timer for exactly one call. All methods are safe for
// concurrent use; a single Manager is shared by the dialogue machine, the
// audio pipeline, and the playback coordinator for one call.
type Manager struct {
	mu sync.Mutex

	noInput  *time.Timer
	hangup   *time.Timer
	watchdog *time.Timer
}

// New returns an idle Manager with no timers armed.
func New() *Manager {
	return &Manager{}
}

// ArmNoInput (re)schedules the silence timer. Firing calls fn with no
// further bookkeeping — the caller (dialogue machine) is responsible for
// incrementing no_input_streak and selecting the next template. Arming
// again before it fires resets the window, matching caller-speech reset
// semantics (§4.6: "Any caller speech resets no_input_streak to 0").
func (m *Manager) ArmNoInput(d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.noInput != nil {
		m.noInput.Stop()
	}
	m.noInput = time.AfterFunc(d, fn)
}

// CancelNoInput stops the silence timer without firing it (caller spoke).
func (m *Manager) CancelNoInput() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.noInput != nil {
		m.noInput.Stop()
		m.noInput = nil
	}
}

// ScheduleHangup arms (or reschedules, cancelling any prior one) the
// auto-hangup timer. Per spec §4.9/§5: "Scheduling a new auto-hangup timer
// cancels any prior timer for the same call."
func (m *Manager) ScheduleHangup(d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hangup != nil {
		m.hangup.Stop()
	}
	m.hangup = time.AfterFunc(d, fn)
}

// CancelHangup stops the pending hangup timer, if any.
func (m *Manager) CancelHangup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hangup != nil {
		m.hangup.Stop()
		m.hangup = nil
	}
}

// ArmPlaybackWatchdog bounds a single template broadcast; fn should mark
// is_playing false and treat the playback as complete-by-timeout.
func (m *Manager) ArmPlaybackWatchdog(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watchdog != nil {
		m.watchdog.Stop()
	}
	m.watchdog = time.AfterFunc(PlaybackWatchdog, fn)
}

// CancelPlaybackWatchdog stops the watchdog (normal playback-complete event
// arrived before the 10s bound).
func (m *Manager) CancelPlaybackWatchdog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watchdog != nil {
		m.watchdog.Stop()
		m.watchdog = nil
	}
}

// CancelAll stops every timer for this call. Used during teardown
// (§4.10: "cancel all per-call timers").
func (m *Manager) CancelAll() {
	m.CancelNoInput()
	m.CancelHangup()
	m.CancelPlaybackWatchdog()
}

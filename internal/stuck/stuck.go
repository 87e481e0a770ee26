// Package stuck implements the stuck detector (C10): bounded-history
// screen and action tracking that raises alerts when the agent appears
// to be looping, repeating an action, or navigating aimlessly.
//
// Ported from original_source/src/tools/android/stuck.rs — the teacher
// has no precedent for this component at all, so the Rust original is
// the sole grounding source. Constants and thresholds are adopted
// exactly; the VecDeque-based ring buffers become plain slices trimmed
// from the front, re-expressed in Go idiom rather than transliterated.
package stuck

import (
	"sort"
	"strings"
)

const (
	// ScreenHistorySize is how many screen hashes are kept for
	// unchanged-screen detection.
	ScreenHistorySize = 8
	// UnchangedThreshold is the number of consecutive identical screen
	// observations that raises a ScreenUnchanged alert.
	UnchangedThreshold = 3
	// ActionHistorySize is the sliding window of recent actions kept for
	// repetition/drift detection.
	ActionHistorySize = 8
	// RepeatThreshold is how many times the same action must recur in
	// the window to raise an ActionRepeated alert.
	RepeatThreshold = 3
	// DriftThreshold is how many navigation actions in DriftWindow raise
	// a NavigationDrift alert.
	DriftThreshold = 4
	// DriftWindow is how many of the most recent actions are inspected
	// for navigation drift.
	DriftWindow = 5
)

// NavActions are the navigation actions that count toward drift.
var NavActions = map[string]bool{"back": true, "home": true, "recent": true}

// AlertKind discriminates Alert variants.
type AlertKind string

const (
	AlertScreenUnchanged AlertKind = "screen_unchanged"
	AlertActionRepeated  AlertKind = "action_repeated"
	AlertNavigationDrift AlertKind = "navigation_drift"
)

// Alert is a single stuck-detector warning.
type Alert struct {
	Kind    AlertKind
	Message string
}

// Element is anything hash_screen can fold into a deterministic screen
// signature. IdentityKey must be a stable, order-independent
// representation of the element (e.g. "id=btn;text=OK;center=100,200").
type Element interface {
	IdentityKey() string
}

// Detector tracks recent screen hashes and actions, bounded to
// ScreenHistorySize/ActionHistorySize entries.
type Detector struct {
	screenHashes  []string
	actionHistory []string
}

// New creates an empty Detector.
func New() *Detector {
	return &Detector{}
}

// HashScreen computes a deterministic signature for a screen: each
// element's identity key, sorted, joined by ";". Sorting makes the hash
// independent of element enumeration order.
func HashScreen(elements []Element) string {
	parts := make([]string, len(elements))
	for i, e := range elements {
		parts[i] = e.IdentityKey()
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// ObserveScreen records a screen observation and returns any alerts
// raised by it.
func (d *Detector) ObserveScreen(elements []Element) []Alert {
	hash := HashScreen(elements)
	var alerts []Alert

	consecutiveSame := 0
	for i := len(d.screenHashes) - 1; i >= 0; i-- {
		if d.screenHashes[i] != hash {
			break
		}
		consecutiveSame++
	}

	if consecutiveSame >= UnchangedThreshold-1 {
		alerts = append(alerts, Alert{
			Kind:    AlertScreenUnchanged,
			Message: "screen unchanged for too many consecutive observations; try a different action or scroll to reveal new elements",
		})
	}

	d.screenHashes = append(d.screenHashes, hash)
	if len(d.screenHashes) > ScreenHistorySize {
		d.screenHashes = d.screenHashes[len(d.screenHashes)-ScreenHistorySize:]
	}
	return alerts
}

// ObserveAction records an action (case-insensitively) and returns any
// alerts raised by it.
func (d *Detector) ObserveAction(action string) []Alert {
	var alerts []Alert
	sig := strings.ToLower(action)

	repeatCount := 0
	for _, a := range d.actionHistory {
		if a == sig {
			repeatCount++
		}
	}
	if repeatCount >= RepeatThreshold-1 {
		alerts = append(alerts, Alert{
			Kind:    AlertActionRepeated,
			Message: "action '" + action + "' repeated too many times recently; consider a different approach",
		})
	}

	navCount := 0
	windowStart := len(d.actionHistory) - (DriftWindow - 1)
	if windowStart < 0 {
		windowStart = 0
	}
	for _, a := range d.actionHistory[windowStart:] {
		if NavActions[a] {
			navCount++
		}
	}
	if NavActions[sig] {
		navCount++
	}
	if navCount >= DriftThreshold {
		alerts = append(alerts, Alert{
			Kind:    AlertNavigationDrift,
			Message: "too many navigation actions (back/home/recent) in the recent action window; the agent may be navigating without clear purpose",
		})
	}

	d.actionHistory = append(d.actionHistory, sig)
	if len(d.actionHistory) > ActionHistorySize {
		d.actionHistory = d.actionHistory[len(d.actionHistory)-ActionHistorySize:]
	}
	return alerts
}

// Reset clears all history, e.g. when starting a new task.
func (d *Detector) Reset() {
	d.screenHashes = nil
	d.actionHistory = nil
}

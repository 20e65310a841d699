package risk

import (
	"strings"
	"time"
)

type Session string

const (
	SessionSydney  Session = "sydney"
	SessionTokyo   Session = "tokyo"
	SessionLondon  Session = "london"
	SessionNewYork Session = "new_york"
)

type window struct{ open, close int }

// UTC opening hours, close exclusive.
var sessionHours = []struct {
	session Session
	hours   window
}{
	{SessionSydney, window{21, 6}},
	{SessionTokyo, window{0, 9}},
	{SessionLondon, window{7, 16}},
	{SessionNewYork, window{12, 21}},
}

func (w window) contains(h int) bool {
	if w.open < w.close {
		return h >= w.open && h < w.close
	}
	return h >= w.open || h < w.close
}

// SessionsAt returns every session open at t.
func SessionsAt(t time.Time) []Session {
	h := t.UTC().Hour()
	var out []Session
	for _, s := range sessionHours {
		if s.hours.contains(h) {
			out = append(out, s.session)
		}
	}
	return out
}

// favoredSessions returns the sessions where the pair sees its natural liquidity.
func favoredSessions(symbol string) []Session {
	s := strings.ToUpper(symbol)
	if strings.Contains(s, "JPY") || strings.Contains(s, "AUD") || strings.Contains(s, "NZD") {
		return []Session{SessionTokyo, SessionLondon}
	}
	return []Session{SessionLondon, SessionNewYork}
}

// FavorableSession reports whether t falls inside one of the pair's favored sessions.
func FavorableSession(symbol string, t time.Time) bool {
	favored := favoredSessions(symbol)
	for _, open := range SessionsAt(t) {
		for _, f := range favored {
			if open == f {
				return true
			}
		}
	}
	return false
}

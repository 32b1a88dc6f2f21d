package subscription

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Unlimited is substituted for duration and data placeholders when the
// account has no expiry or no data limit.
const Unlimited = "∞"

// Expired is substituted for DAYS_LEFT and TIME_LEFT once the expiry has
// passed. It is deliberately distinct from Unlimited.
const Expired = "0"

var statusEmojis = map[string]string{
	"active":   "✅",
	"expired":  "⌛️",
	"limited":  "🪫",
	"disabled": "❌",
}

// StatusSnapshot is the user status view the variable resolver consumes.
// Expire and DataLimit use 0 to mean unlimited.
type StatusSnapshot struct {
	Username    string
	Status      string
	Expire      int64
	DataLimit   int64
	UsedTraffic int64
}

// VariableResolver derives display placeholders from a status snapshot.
type VariableResolver struct {
	serverIP   string
	formatSize func(int64) string
	now        func() time.Time
}

// NewVariableResolver wires the resolver's collaborators: the cached public
// IP, the byte-size formatter and a clock (nil means time.Now).
func NewVariableResolver(serverIP string, formatSize func(int64) string, now func() time.Time) *VariableResolver {
	if now == nil {
		now = time.Now
	}
	return &VariableResolver{serverIP: serverIP, formatSize: formatSize, now: now}
}

// Resolve seeds the format variables for one generation call.
func (r *VariableResolver) Resolve(snap StatusSnapshot) *FormatVariables {
	now := r.now()

	daysLeft := Unlimited
	timeLeft := Unlimited
	if snap.Expire > 0 {
		// Whole days remaining with a +1 correction so "expires later
		// today" still reads as one day. Floor, not truncate: a negative
		// fraction of a day must count as already expired.
		diff := time.Unix(snap.Expire, 0).Sub(now)
		days := int(math.Floor(diff.Hours()/24)) + 1
		if days <= 0 {
			daysLeft = Expired
			timeLeft = Expired
		} else {
			daysLeft = strconv.Itoa(days)
			timeLeft = formatTimeLeft(snap.Expire - now.Unix())
		}
	}

	dataLimit := Unlimited
	dataLeft := Unlimited
	if snap.DataLimit > 0 {
		dataLimit = r.formatSize(snap.DataLimit)
		left := snap.DataLimit - snap.UsedTraffic
		if left < 0 {
			left = 0
		}
		dataLeft = r.formatSize(left)
	}

	vars := NewFormatVariables()
	vars.Set("SERVER_IP", r.serverIP)
	vars.Set("USERNAME", snap.Username)
	vars.Set("DATA_USAGE", r.formatSize(snap.UsedTraffic))
	vars.Set("DATA_LIMIT", dataLimit)
	vars.Set("DATA_LEFT", dataLeft)
	vars.Set("DAYS_LEFT", daysLeft)
	vars.Set("TIME_LEFT", timeLeft)
	vars.Set("STATUS_EMOJI", statusEmojis[snap.Status])
	return vars
}

// formatTimeLeft renders a compact multi-unit duration. Hours are dropped
// once at least a week remains; minutes and seconds are dropped as soon as
// the remainder spans months or days.
func formatTimeLeft(secondsLeft int64) string {
	if secondsLeft <= 0 {
		return Expired
	}

	minutes, seconds := secondsLeft/60, secondsLeft%60
	hours, minutes := minutes/60, minutes%60
	days, hours := hours/24, hours%24
	months, days := days/30, days%30

	var parts []string
	if months > 0 {
		parts = append(parts, strconv.FormatInt(months, 10)+"m")
	}
	if days > 0 {
		parts = append(parts, strconv.FormatInt(days, 10)+"d")
	}
	if hours > 0 && days < 7 {
		parts = append(parts, strconv.FormatInt(hours, 10)+"h")
	}
	if minutes > 0 && months == 0 && days == 0 {
		parts = append(parts, strconv.FormatInt(minutes, 10)+"m")
	}
	if seconds > 0 && months == 0 && days == 0 {
		parts = append(parts, strconv.FormatInt(seconds, 10)+"s")
	}
	return strings.Join(parts, " ")
}

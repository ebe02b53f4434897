package prompt

import (
	"strings"
	"time"

	"muse-stream-server/modules/common/model"
)

// Mood fragments steering the music backend. Closed set; anything outside
// it was already normalized to the default tag by the parser.
var moodFragments = map[string]string{
	"chill":       "Relaxing city pop with smooth bass and dreamy synths, perfect for studying",
	"energetic":   "Upbeat city pop with funky bass and bright synths, retro energy",
	"romantic":    "Romantic city pop with smooth saxophone and gentle vocals, sunset vibes",
	"melancholic": "Melancholic city pop with minor chords and reflective mood, rainy night",
	"study":       "Focus-friendly city pop instrumental, minimal vocals, concentration vibes",
	"general":     "Smooth city pop with warm instrumentation and easy groove",
}

// Visual fragments for the backdrop backend, per mood.
var sceneFragments = map[string]string{
	"chill":       "flowing abstract waves in soft pastels, gentle movement",
	"energetic":   "dynamic particle systems with vibrant colors",
	"romantic":    "smooth smoke swirls with warm golden tones",
	"melancholic": "gentle raindrops on window with city lights",
	"study":       "cozy room with soft lamp glow and plants",
	"general":     "abstract flowing patterns with gentle movement",
}

var timeFragments = map[string]string{
	"morning":    "morning energy, fresh start feeling",
	"afternoon":  "afternoon warmth, steady rhythm",
	"evening":    "evening glow, winding down",
	"night":      "late night vibes, intimate atmosphere",
	"late_night": "deep darkness with subtle neon, midnight vibes",
}

var seasonFragments = map[string]string{
	"spring": "fresh spring atmosphere, renewal energy",
	"summer": "bright warm colors, sunny atmosphere",
	"autumn": "cozy autumn atmosphere, harvest colors",
	"winter": "cool winter tones, minimal warmth",
}

// Builder assembles backend prompts from a request plus the current time
// and season. Pure: no I/O, deterministic under an injected clock.
type Builder struct {
	now func() time.Time
}

// NewBuilder uses the system clock.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// NewBuilderWithClock fixes the clock for tests.
func NewBuilderWithClock(now func() time.Time) *Builder {
	return &Builder{now: now}
}

// Build produces the music-generation prompt for a request.
func (b *Builder) Build(req model.GenerationRequest) string {
	parts := []string{moodFragments[model.NormalizeMood(req.Mood)]}
	if text := strings.TrimSpace(req.Prompt); text != "" {
		parts = append(parts, text)
	}
	parts = append(parts,
		"city pop genre, retro aesthetic, high quality production",
		b.timeFragment(),
		b.seasonFragment(),
	)
	return strings.Join(parts, ", ")
}

// BuildCover produces the cover-art prompt for a request.
func (b *Builder) BuildCover(req model.GenerationRequest) string {
	parts := []string{
		"album cover artwork",
		sceneFragments[model.NormalizeMood(req.Mood)],
	}
	if text := strings.TrimSpace(req.Prompt); text != "" {
		parts = append(parts, "inspired by: "+text)
	}
	parts = append(parts, "retro city pop aesthetic, no text or logos")
	return strings.Join(parts, ", ")
}

// BuildScene produces the looping-backdrop prompt for a request.
func (b *Builder) BuildScene(req model.GenerationRequest) string {
	parts := []string{
		sceneFragments[model.NormalizeMood(req.Mood)],
		b.timeFragment(),
		b.seasonFragment(),
		"seamless loop animation, smooth transitions, abstract style suitable for background, no text or logos, continuous motion",
	}
	return strings.Join(parts, ", ")
}

func (b *Builder) timeFragment() string {
	hour := b.now().Hour()
	switch {
	case hour >= 5 && hour < 12:
		return timeFragments["morning"]
	case hour >= 12 && hour < 17:
		return timeFragments["afternoon"]
	case hour >= 17 && hour < 21:
		return timeFragments["evening"]
	case hour >= 21:
		return timeFragments["night"]
	default:
		return timeFragments["late_night"]
	}
}

func (b *Builder) seasonFragment() string {
	switch b.now().Month() {
	case time.March, time.April, time.May:
		return seasonFragments["spring"]
	case time.June, time.July, time.August:
		return seasonFragments["summer"]
	case time.September, time.October, time.November:
		return seasonFragments["autumn"]
	default:
		return seasonFragments["winter"]
	}
}

package prompt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"muse-stream-server/modules/common/model"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestBuildIncludesMoodAndUserText(t *testing.T) {
	b := NewBuilderWithClock(fixedClock(time.Date(2025, time.July, 10, 14, 0, 0, 0, time.UTC)))

	req := model.GenerationRequest{Prompt: "make it jazzy", Mood: "chill"}
	got := b.Build(req)

	assert.Contains(t, got, "Relaxing city pop")
	assert.Contains(t, got, "make it jazzy")
	assert.Contains(t, got, "afternoon warmth")
	assert.Contains(t, got, "bright warm colors")
}

func TestBuildUnknownMoodUsesDefault(t *testing.T) {
	b := NewBuilderWithClock(fixedClock(time.Date(2025, time.July, 10, 14, 0, 0, 0, time.UTC)))

	got := b.Build(model.GenerationRequest{Mood: "vaporwave"})
	assert.Contains(t, got, moodFragments[model.DefaultMood])
}

func TestBuildOmitsEmptyUserText(t *testing.T) {
	b := NewBuilderWithClock(fixedClock(time.Date(2025, time.July, 10, 14, 0, 0, 0, time.UTC)))

	got := b.Build(model.GenerationRequest{Prompt: "   ", Mood: "study"})
	assert.NotContains(t, got, ",  ,")
	assert.Contains(t, got, "Focus-friendly")
}

func TestTimeFragmentBoundaries(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{2, "midnight vibes"},
		{5, "fresh start feeling"},
		{11, "fresh start feeling"},
		{12, "steady rhythm"},
		{16, "steady rhythm"},
		{17, "winding down"},
		{20, "winding down"},
		{21, "intimate atmosphere"},
		{23, "intimate atmosphere"},
	}
	for _, tc := range cases {
		b := NewBuilderWithClock(fixedClock(time.Date(2025, time.July, 10, tc.hour, 0, 0, 0, time.UTC)))
		assert.Contains(t, b.Build(model.GenerationRequest{}), tc.want, "hour %d", tc.hour)
	}
}

func TestSeasonFragments(t *testing.T) {
	cases := []struct {
		month time.Month
		want  string
	}{
		{time.April, "renewal energy"},
		{time.July, "sunny atmosphere"},
		{time.October, "harvest colors"},
		{time.January, "minimal warmth"},
		{time.December, "minimal warmth"},
	}
	for _, tc := range cases {
		b := NewBuilderWithClock(fixedClock(time.Date(2025, tc.month, 10, 14, 0, 0, 0, time.UTC)))
		assert.Contains(t, b.Build(model.GenerationRequest{}), tc.want, "month %s", tc.month)
	}
}

func TestBuildCover(t *testing.T) {
	b := NewBuilderWithClock(fixedClock(time.Date(2025, time.July, 10, 14, 0, 0, 0, time.UTC)))

	got := b.BuildCover(model.GenerationRequest{Prompt: "neon skyline", Mood: "melancholic"})
	assert.Contains(t, got, "album cover artwork")
	assert.Contains(t, got, "raindrops on window")
	assert.Contains(t, got, "inspired by: neon skyline")
	assert.Contains(t, got, "no text or logos")
}

func TestBuildScene(t *testing.T) {
	b := NewBuilderWithClock(fixedClock(time.Date(2025, time.December, 24, 23, 0, 0, 0, time.UTC)))

	got := b.BuildScene(model.GenerationRequest{Mood: "romantic"})
	assert.Contains(t, got, "smoke swirls")
	assert.Contains(t, got, "intimate atmosphere")
	assert.Contains(t, got, "minimal warmth")
	assert.Contains(t, got, "seamless loop")
}

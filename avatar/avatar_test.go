package avatar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackIsSticky(t *testing.T) {
	f := NewFallback()
	url := "https://cdn.example.com/a.png"

	got, ok := f.Render("Dat Nguyen", url)
	assert.True(t, ok)
	assert.Equal(t, url, got)

	f.MarkBroken(url)
	got, ok = f.Render("Dat Nguyen", url)
	assert.False(t, ok)
	assert.Equal(t, "DN", got)

	// stays broken on subsequent renders
	_, ok = f.Render("Dat Nguyen", url)
	assert.False(t, ok)
}

func TestFallbackPerURL(t *testing.T) {
	f := NewFallback()
	f.MarkBroken("https://cdn.example.com/a.png")

	_, ok := f.Render("Someone Else", "https://cdn.example.com/b.png")
	assert.True(t, ok, "a different URL is unaffected")
}

func TestRenderWithoutURL(t *testing.T) {
	f := NewFallback()
	got, ok := f.Render("Dat Nguyen", "")
	assert.False(t, ok)
	assert.Equal(t, "DN", got)
}

func TestInitials(t *testing.T) {
	cases := map[string]string{
		"Dat Nguyen":       "DN",
		"dat":              "D",
		"":                 "?",
		"  ":               "?",
		"Anna Maria Rossi": "AR",
	}
	for name, want := range cases {
		assert.Equal(t, want, Initials(name), "name %q", name)
	}
}

package templates

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderInviteEmail(t *testing.T) {
	expires := time.Date(2024, time.September, 9, 9, 0, 0, 0, time.UTC)
	out := RenderInviteEmail("CS101 <Intro>", "https://roster.example.edu/invite/abc?x=1&y=2", expires)

	assert.Contains(t, out, "CS101 &lt;Intro&gt;")
	assert.NotContains(t, out, "<Intro>")
	assert.Contains(t, out, `href="https://roster.example.edu/invite/abc?x=1&amp;y=2"`)
	assert.Contains(t, out, "September 9, 2024 09:00 UTC")
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html"))
}

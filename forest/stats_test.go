package forest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLossPercentage(t *testing.T) {
	cases := []struct {
		name       string
		area, loss float64
		want       float64
	}{
		{"rounds before dividing", 123.456, 45.678, 46.0 / 123.0 * 100},
		{"exact", 200, 50, 25},
		{"no loss", 80.2, 0.4, 0},
		{"zero cover", 0.3, 0.2, 0},
		{"zero cover with loss", 0, 3, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, LossPercentage(tc.area, tc.loss), 1e-9)
		})
	}
	assert.InDelta(t, 37.398, LossPercentage(123.456, 45.678), 1e-3)
}

func TestNewForestStats(t *testing.T) {
	s := NewForestStats(12.4, 2.6)
	assert.Equal(t, 12.4, s.Area2000KHa)
	assert.Equal(t, 2.6, s.LossAreaKHa)
	assert.InDelta(t, 25.0, s.LossPercentage, 1e-9)
}

func TestPopupHTML(t *testing.T) {
	html, err := PopupHTML("Cumbria", &ForestStats{Area2000KHa: 123.456, LossAreaKHa: 45.678, LossPercentage: 37.39837})
	require.NoError(t, err)
	assert.Contains(t, html, "<h4>Forest Cover Statistics for Cumbria</h4>")
	assert.Contains(t, html, "Total Tree Cover in 2000: 123.46 KHa")
	assert.Contains(t, html, "Total Forest Loss Since 2000: 45.68 KHa")
	assert.Contains(t, html, "Percentage Forest Loss Since 2000: 37.40%")
	assert.Equal(t, 3, strings.Count(html, "<li>"))
}

func TestPopupHTMLEscapesName(t *testing.T) {
	html, err := PopupHTML("Brecon <Beacons> & Co", NewForestStats(1, 0))
	require.NoError(t, err)
	assert.NotContains(t, html, "<Beacons>")
	assert.Contains(t, html, "Brecon &lt;Beacons&gt; &amp; Co")
}

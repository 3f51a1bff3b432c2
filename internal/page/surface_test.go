package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCardKey(t *testing.T) {
	assert.Equal(t, "3141", Card{ElementID: " 3141 ", Href: "/immobile/3141/"}.Key())
	assert.Equal(t, "/immobile/3141/", Card{Href: "/immobile/3141/"}.Key())
	assert.Equal(t, "", Card{}.Key())
}

func TestCardAddress(t *testing.T) {
	assert.Equal(t, "Trilocale via Savona, Milano", Card{LinkText: "\n  Trilocale via Savona, Milano \n", LinkTitle: "t"}.Address())
	assert.Equal(t, "Bilocale Navigli", Card{LinkText: "   ", LinkTitle: " Bilocale Navigli "}.Address())
	assert.Equal(t, "", Card{}.Address())
}

func TestDetailFieldsAddress(t *testing.T) {
	assert.Equal(t, "Via Savona 12, Tortona, Milano", DetailFields{
		HeaderFragments: []string{" Via Savona 12 ", "", "Tortona", "Milano"},
		Title:           "Trilocale in vendita",
	}.Address())
	assert.Equal(t, "Trilocale in vendita", DetailFields{HeaderFragments: []string{" "}, Title: "Trilocale in vendita", Subtitle: "Tortona, Milano"}.Address())
	assert.Equal(t, "Tortona, Milano", DetailFields{Subtitle: " Tortona, Milano "}.Address())
	assert.Equal(t, "", DetailFields{}.Address())
}

func TestSubscriptionCancelOnce(t *testing.T) {
	calls := 0
	s := NewSubscription(make(chan struct{}), func() { calls++ })

	s.Cancel()
	s.Cancel()

	assert.Equal(t, 1, calls)
}

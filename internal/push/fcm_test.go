package push

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayloadData(t *testing.T) {
	p := Payload{
		Title:      "Moments Reminder 🎉",
		Body:       "🎉 Today is Ada's Birthday!",
		Tag:        "moment-e1",
		PersonID:   "e1",
		PersonName: "Ada",
	}

	data := p.Data()
	assert.Equal(t, map[string]string{
		"title":      "Moments Reminder 🎉",
		"body":       "🎉 Today is Ada's Birthday!",
		"tag":        "moment-e1",
		"personId":   "e1",
		"personName": "Ada",
	}, data)
}

func TestPayloadDataOmitsEmptyPersonFields(t *testing.T) {
	data := Payload{Title: "T", Body: "B", Tag: "t"}.Data()

	assert.NotContains(t, data, "personId")
	assert.NotContains(t, data, "personName")
}

func TestTokenPrefixTruncates(t *testing.T) {
	long := strings.Repeat("x", 64)
	got := tokenPrefix(long)
	assert.Len(t, got, 23)
	assert.True(t, strings.HasSuffix(got, "..."))

	assert.Equal(t, "short", tokenPrefix("short"))
}

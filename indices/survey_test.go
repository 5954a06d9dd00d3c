package indices

import (
	"testing"

	"github.com/ridge/quarry/meta"
	"github.com/stretchr/testify/require"
)

type accountID string

type account struct {
	meta.Meta `quarry:"table=accounts"`
	ID        accountID `quarry:"id"`
	Login     string    `quarry:"unique"`
	Region    string    `quarry:"index,index=region_tier"`
	Tier      int       `quarry:"index=region_tier"`
	Note      string
}

func TestSurvey(t *testing.T) {
	s := Survey[account]()
	require.Equal(t, "accounts", s.Table)
	require.Equal(t, []string{"login", "region", "region_tier"}, s.Registry.Names())

	a := account{ID: "a1", Login: "neo", Region: "eu", Tier: 2}
	require.Equal(t, "a1", s.ID(a))
	require.Equal(t, map[string]string{
		"login":       "neo",
		"region":      "eu",
		"region_tier": "eu\x002",
	}, s.Registry.Keys(a))

	def, ok := s.Registry.Get("login")
	require.True(t, ok)
	require.True(t, def.Unique)
}

func TestSurveyUnsupported(t *testing.T) {
	type bad struct {
		meta.Meta `quarry:"table=bad"`
		ID        string   `quarry:"id"`
		Tags      []string `quarry:"index"`
	}
	require.Panics(t, func() { Survey[bad]() })
}

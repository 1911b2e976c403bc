package enrich_test

import (
	"testing"

	"github.com/serroba/clickstream-go/internal/enrich"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCampaign(t *testing.T) {
	t.Run("extracts all utm parameters", func(t *testing.T) {
		campaign := enrich.ExtractCampaign(
			"https://news.example.com/story?utm_source=newsletter&utm_medium=email&utm_campaign=spring&utm_term=shoes&utm_content=cta",
		)

		require.NotNil(t, campaign)
		assert.Equal(t, "newsletter", campaign.Source)
		assert.Equal(t, "email", campaign.Medium)
		assert.Equal(t, "spring", campaign.Campaign)
		assert.Equal(t, "shoes", campaign.Term)
		assert.Equal(t, "cta", campaign.Content)
	})

	t.Run("partial parameters still attribute", func(t *testing.T) {
		campaign := enrich.ExtractCampaign("https://example.com/?utm_source=twitter")

		require.NotNil(t, campaign)
		assert.Equal(t, "twitter", campaign.Source)
		assert.Empty(t, campaign.Medium)
	})

	t.Run("no campaign cases", func(t *testing.T) {
		assert.Nil(t, enrich.ExtractCampaign(""))
		assert.Nil(t, enrich.ExtractCampaign("https://example.com/plain"))
		assert.Nil(t, enrich.ExtractCampaign("://bad\x7f"))
		assert.Nil(t, enrich.ExtractCampaign("https://example.com/?other=1"))
	})
}

package enrich

import (
	"net/url"

	"github.com/serroba/clickstream-go/internal/clickstream"
)

// ExtractCampaign parses utm_* query parameters out of a referrer URL.
// It returns nil when the referrer is absent, unparsable, or carries no
// recognized parameters.
func ExtractCampaign(referrer string) *clickstream.Campaign {
	if referrer == "" {
		return nil
	}

	parsed, err := url.Parse(referrer)
	if err != nil {
		return nil
	}

	query := parsed.Query()

	campaign := &clickstream.Campaign{
		Source:   query.Get("utm_source"),
		Medium:   query.Get("utm_medium"),
		Campaign: query.Get("utm_campaign"),
		Term:     query.Get("utm_term"),
		Content:  query.Get("utm_content"),
	}

	if *campaign == (clickstream.Campaign{}) {
		return nil
	}

	return campaign
}

package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const DefaultEndpoint = "https://google.serper.dev/images"

// ErrNotConfigured is returned when no API key is set
var ErrNotConfigured = errors.New("media search not configured")

var polishSites = []string{
	"apologetyka.info",
	"gosc.pl",
	"deon.pl",
	"mateusz.pl",
	"aleteia.org",
	"bibliowersytet.pl",
	"preceptpolska.org",
	"bibliaapologety.com",
	"bibliepolskie.pl",
	"ewangelia.pl",
	"katolik.pl",
	"opoka.org.pl",
	"studiateologiczne.pl",
	"biblia.wiara.pl",
	"biblia.pl",
}

var englishSites = []string{
	"christianitytoday.com",
	"catholic.com",
	"bible.org",
	"studylight.org",
	"biblehub.com",
	"aleteia.org",
	"desiringgod.org",
	"thegospelcoalition.org",
	"openbible.info",
	"gotquestions.org",
	"blueletterbible.org",
	"biblegateway.com",
}

// excludeFilter drops shop pages that the site filters would otherwise match
const excludeFilter = "-site:sklep.gosc.pl -inurl:sklep -inurl:shop -inurl:store -inurl:ksiegarnia"

// Item is one related article shown next to search results
type Item struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Source   string `json:"source"`
	Type     string `json:"type"`
	ImageURL string `json:"image_url,omitempty"`
	URL      string `json:"url"`
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
	GL  string `json:"gl"`
	HL  string `json:"hl"`
}

type serperImage struct {
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
	Source   string `json:"source"`
	Domain   string `json:"domain"`
	Link     string `json:"link"`
}

// Client queries the Serper image search API
type Client struct {
	apiKey     string
	endpoint   string
	num        int
	httpClient *http.Client
}

func NewClient(apiKey, endpoint string, num int) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if num <= 0 {
		num = 3
	}
	return &Client{
		apiKey:     apiKey,
		endpoint:   endpoint,
		num:        num,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether an API key is present
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// BuildQuery restricts query to the curated sites for lang
func BuildQuery(query, lang string) string {
	sites := englishSites
	if lang == "pl" {
		sites = polishSites
	}

	filters := make([]string, len(sites))
	for i, site := range sites {
		filters[i] = "site:" + site
	}
	return fmt.Sprintf("%s (%s) %s", query, strings.Join(filters, " OR "), excludeFilter)
}

// Locale returns the country and interface language sent upstream
func Locale(lang string) (gl, hl string) {
	if lang == "pl" {
		return "pl", "pl"
	}
	return "us", "en"
}

// Search fetches related articles for query in lang
func (c *Client) Search(ctx context.Context, query, lang string) ([]Item, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	gl, hl := Locale(lang)
	payload, err := json.Marshal(serperRequest{Q: BuildQuery(query, lang), Num: c.num, GL: gl, HL: hl})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper returned status %d", resp.StatusCode)
	}

	var body struct {
		Images []serperImage `json:"images"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode serper response: %w", err)
	}

	items := make([]Item, 0, len(body.Images))
	for i, img := range body.Images {
		source := img.Source
		if source == "" {
			source = img.Domain
		}
		if source == "" {
			source = "Unknown Source"
		}
		items = append(items, Item{
			ID:       fmt.Sprintf("serper-%d", i),
			Title:    img.Title,
			Source:   source,
			Type:     "article",
			ImageURL: img.ImageURL,
			URL:      img.Link,
		})
	}
	return items, nil
}

// Package tdcj queries the Texas Department of Criminal Justice offender search.
// The site answers a form POST with an HTML page; matches are the rows of the
// table.tdcj_table element.
package tdcj

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"inmates/internal/inmates/models"
	"inmates/internal/inmates/providers"
	"inmates/internal/platform/httpclient"
)

const (
	DefaultBaseURL = "https://offender.tdcj.texas.gov"
	searchPath     = "/OffenderSearch/search.action"

	// idWidth is the zero-padded width of a TDCJ number.
	idWidth = 8
)

// Column headers of the results table.
const (
	colNumber  = "TDCJ Number"
	colName    = "Name"
	colRace    = "Race"
	colGender  = "Gender"
	colRelease = "Projected Release Date"
	colUnit    = "Unit of Assignment"
)

// Adapter implements providers.Provider for TDCJ.
type Adapter struct {
	base   *url.URL
	client *httpclient.Client
	logger *slog.Logger
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an adapter against baseURL. An empty baseURL uses DefaultBaseURL.
func New(baseURL string, client *httpclient.Client, opts ...Option) (*Adapter, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid TDCJ base URL %q", baseURL)
	}
	if client == nil {
		client = httpclient.New(httpclient.Config{})
	}
	a := &Adapter{
		base:   base,
		client: client,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Jurisdiction implements providers.Provider.
func (a *Adapter) Jurisdiction() models.Jurisdiction {
	return models.JurisdictionTexas
}

// Fetch implements providers.Provider.
func (a *Adapter) Fetch(ctx context.Context, q models.Query) ([]providers.RawRecord, error) {
	form := url.Values{
		"btnSearch": {"Search"},
		"gender":    {"ALL"},
		"page":      {"index"},
		"race":      {"ALL"},
		"tdcj":      {""},
		"sid":       {""},
		"lastName":  {""},
		"firstName": {""},
	}
	switch q.Kind() {
	case models.QueryByID:
		form.Set("tdcj", FormatID(q.ID()))
	case models.QueryByName:
		form.Set("firstName", q.First())
		form.Set("lastName", q.Last())
	default:
		return nil, providers.NewFetchError(providers.ErrorInvalidQuery, a.Jurisdiction(), "unsupported query", nil)
	}

	a.logger.DebugContext(ctx, "querying TDCJ", "query", q.String())

	resp, err := a.client.PostForm(ctx, a.base.ResolveReference(&url.URL{Path: searchPath}).String(), form)
	if err != nil {
		return nil, err
	}

	records, err := a.parse(resp.Body)
	if err != nil {
		return nil, err
	}
	a.logger.DebugContext(ctx, "TDCJ query returned", "records", len(records))
	return records, nil
}

func (a *Adapter) parse(body []byte) ([]providers.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewFetchError(providers.ErrorBadData, a.Jurisdiction(), "unreadable results page", err)
	}

	records := []providers.RawRecord{}
	table := doc.Find("table.tdcj_table").First()
	if table.Length() == 0 {
		return records, nil
	}

	rows := table.Find("tr")
	var keys []string
	rows.First().Find("th").Each(func(_ int, th *goquery.Selection) {
		keys = append(keys, strings.TrimSpace(th.Text()))
	})
	if len(keys) == 0 {
		return nil, providers.NewFetchError(providers.ErrorContractMismatch, a.Jurisdiction(), "results table has no header row", nil)
	}

	rows.Slice(1, goquery.ToEnd).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		entry := make(map[string]string, len(keys))
		cells.Each(func(i int, td *goquery.Selection) {
			if i < len(keys) {
				entry[keys[i]] = strings.TrimSpace(td.Text())
			}
		})
		rec := providers.StateRaw{
			Number:           entry[colNumber],
			Name:             entry[colName],
			Race:             entry[colRace],
			Gender:           entry[colGender],
			ProjectedRelease: entry[colRelease],
			Unit:             entry[colUnit],
		}
		if href, ok := tr.Find("a").First().Attr("href"); ok {
			rec.URL = a.resolve(href)
		}
		records = append(records, rec)
	})
	return records, nil
}

func (a *Adapter) resolve(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return a.base.ResolveReference(ref).String()
}

// FormatID left-pads a numeric id with zeros to the TDCJ width.
func FormatID(id string) string {
	if len(id) >= idWidth {
		return id
	}
	return strings.Repeat("0", idWidth-len(id)) + id
}

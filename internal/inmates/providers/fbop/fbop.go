// Package fbop queries the Federal Bureau of Prisons inmate locator.
//
// The locator is nationwide; results are narrowed to facilities in Texas (plus
// the TEMP RELEASE and IN TRANSIT pseudo-facilities) and to inmates who have not
// been released yet.
package fbop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"inmates/internal/inmates/models"
	"inmates/internal/inmates/providers"
	"inmates/internal/platform/httpclient"
)

const DefaultURL = "https://www.bop.gov/PublicInfo/execute/inmateloc"

// TexasFacilities are the facility codes of federal units located in Texas.
var TexasFacilities = []string{
	"BAS", "BML", "BMM", "BMP", "BSC", "BIG", "BRY", "CRW", "EDN",
	"FTW", "DAL", "HOU", "LAT", "REE", "RVS", "SEA", "TEX", "TRV",
}

// SpecialFacilities are pseudo-facilities reported for inmates between units.
var SpecialFacilities = []string{"TEMP RELEASE", "IN TRANSIT"}

// DefaultFacilities is the facility filter applied when none is configured.
func DefaultFacilities() []string {
	out := make([]string, 0, len(TexasFacilities)+len(SpecialFacilities))
	out = append(out, TexasFacilities...)
	return append(out, SpecialFacilities...)
}

// Adapter implements providers.Provider for the FBOP inmate locator.
type Adapter struct {
	url             string
	client          *httpclient.Client
	logger          *slog.Logger
	facilities      map[string]struct{}
	includeReleased bool
	now             func() time.Time
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

// WithFacilities replaces the facility filter. An empty list disables it.
func WithFacilities(codes []string) Option {
	return func(a *Adapter) {
		a.facilities = facilitySet(codes)
	}
}

// WithIncludeReleased keeps inmates whose release date has passed.
func WithIncludeReleased(include bool) Option {
	return func(a *Adapter) {
		a.includeReleased = include
	}
}

// WithClock overrides the clock used for the release filter.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an adapter posting to locatorURL. An empty locatorURL uses DefaultURL.
func New(locatorURL string, client *httpclient.Client, opts ...Option) (*Adapter, error) {
	if locatorURL == "" {
		locatorURL = DefaultURL
	}
	u, err := url.Parse(locatorURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid FBOP locator URL %q", locatorURL)
	}
	if client == nil {
		client = httpclient.New(httpclient.Config{})
	}
	a := &Adapter{
		url:        u.String(),
		client:     client,
		logger:     slog.New(slog.DiscardHandler),
		facilities: facilitySet(DefaultFacilities()),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Jurisdiction implements providers.Provider.
func (a *Adapter) Jurisdiction() models.Jurisdiction {
	return models.JurisdictionFederal
}

type locatorResponse struct {
	InmateLocator *[]providers.FederalRaw `json:"InmateLocator"`
}

// Fetch implements providers.Provider.
func (a *Adapter) Fetch(ctx context.Context, q models.Query) ([]providers.RawRecord, error) {
	form := url.Values{
		"age":        {""},
		"inmateNum":  {""},
		"nameFirst":  {""},
		"nameLast":   {""},
		"nameMiddle": {""},
		"output":     {"json"},
		"race":       {""},
		"sex":        {""},
		"todo":       {"query"},
	}
	switch q.Kind() {
	case models.QueryByID:
		form.Set("inmateNum", FormatID(q.ID()))
	case models.QueryByName:
		form.Set("nameFirst", q.First())
		form.Set("nameLast", q.Last())
	default:
		return nil, providers.NewFetchError(providers.ErrorInvalidQuery, a.Jurisdiction(), "unsupported query", nil)
	}

	a.logger.DebugContext(ctx, "querying FBOP", "query", q.String())

	resp, err := a.client.PostForm(ctx, a.url, form)
	if err != nil {
		return nil, err
	}

	var body locatorResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, providers.NewFetchError(providers.ErrorBadData, a.Jurisdiction(), "malformed locator response", err)
	}
	if body.InmateLocator == nil {
		return nil, providers.NewFetchError(providers.ErrorContractMismatch, a.Jurisdiction(), "locator response has no InmateLocator field", nil)
	}

	records := make([]providers.RawRecord, 0, len(*body.InmateLocator))
	for _, rec := range *body.InmateLocator {
		if !a.inFacility(rec) {
			continue
		}
		if !a.includeReleased && a.released(rec) {
			continue
		}
		records = append(records, rec)
	}
	a.logger.DebugContext(ctx, "FBOP query returned",
		"records", len(*body.InmateLocator),
		"kept", len(records),
	)
	return records, nil
}

func (a *Adapter) inFacility(rec providers.FederalRaw) bool {
	if len(a.facilities) == 0 {
		return true
	}
	_, ok := a.facilities[strings.ToUpper(strings.TrimSpace(rec.FaclCode))]
	return ok
}

// released reports whether the release date is today or earlier. Records
// without a parseable date are kept.
func (a *Adapter) released(rec providers.FederalRaw) bool {
	release, ok := rec.ReleaseDate()
	if !ok {
		return false
	}
	y, m, d := a.now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !release.After(today)
}

// FormatID renders a numeric id as the dashed NNNNN-NNN locator number.
func FormatID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) < 8 {
		id = strings.Repeat("0", 8-len(id)) + id
	}
	return id[:len(id)-3] + "-" + id[len(id)-3:]
}

func facilitySet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

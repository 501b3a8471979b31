package session

import (
	"github.com/Wuchinator/landing-analytics/internal/geocode"
	"github.com/Wuchinator/landing-analytics/internal/store"
)

// Session is a stored row.
type Session struct {
	ID               int64           `db:"id" json:"id"`
	SessionID        string          `db:"session_id" json:"session_id"`
	Timestamp        store.Timestamp `db:"timestamp" json:"timestamp"`
	UserAgent        *string         `db:"user_agent" json:"user_agent"`
	ScreenWidth      *int64          `db:"screen_width" json:"screen_width"`
	ScreenHeight     *int64          `db:"screen_height" json:"screen_height"`
	Referrer         *string         `db:"referrer" json:"referrer"`
	Latitude         *float64        `db:"latitude" json:"latitude"`
	Longitude        *float64        `db:"longitude" json:"longitude"`
	LocationAccuracy *float64        `db:"location_accuracy" json:"location_accuracy"`
	Municipality     *string         `db:"municipality" json:"municipality"`
	Region           *string         `db:"region" json:"region"`
	Country          *string         `db:"country" json:"country"`
	Language         *string         `db:"language" json:"language"`
	Platform         *string         `db:"platform" json:"platform"`
	ConnectionType   *string         `db:"connection_type" json:"connection_type"`
	Downlink         *float64        `db:"downlink" json:"downlink"`
	RTT              *int64          `db:"rtt" json:"rtt"`
	PageLoadTime     *int64          `db:"page_load_time" json:"page_load_time"`
	Timezone         *string         `db:"timezone" json:"timezone"`
	TimeOnPage       int64           `db:"time_on_page" json:"time_on_page"`
	ScrollDepth      int64           `db:"scroll_depth" json:"scroll_depth"`
	ActiveTime       int64           `db:"active_time" json:"active_time"`
}

// Columns is the select list matching Session.
const Columns = `id, session_id, timestamp, user_agent, screen_width, screen_height, referrer,
	latitude, longitude, location_accuracy, municipality, region, country,
	language, platform, connection_type, downlink, rtt, page_load_time, timezone,
	time_on_page, scroll_depth, active_time`

// HasPlaceFor reports whether the row already carries an enriched place
// for exactly these coordinates.
func (s *Session) HasPlaceFor(lat, lon float64) bool {
	if s.Latitude == nil || s.Longitude == nil {
		return false
	}
	if *s.Latitude != lat || *s.Longitude != lon {
		return false
	}
	return s.Municipality != nil || s.Region != nil || s.Country != nil
}

// Patch is a partial session record. Only fields that carry a value are
// written; absent and null fields leave the stored value alone.
type Patch struct {
	SessionID string          `json:"session_id" validate:"required,max=128"`
	Timestamp store.Timestamp `json:"timestamp" validate:"required"`

	UserAgent        Field[string]  `json:"user_agent,omitzero"`
	ScreenWidth      Field[int64]   `json:"screen_width,omitzero"`
	ScreenHeight     Field[int64]   `json:"screen_height,omitzero"`
	Referrer         Field[string]  `json:"referrer,omitzero"`
	Latitude         Field[float64] `json:"latitude,omitzero"`
	Longitude        Field[float64] `json:"longitude,omitzero"`
	LocationAccuracy Field[float64] `json:"location_accuracy,omitzero"`
	Language         Field[string]  `json:"language,omitzero"`
	Platform         Field[string]  `json:"platform,omitzero"`
	ConnectionType   Field[string]  `json:"connection_type,omitzero"`
	Downlink         Field[float64] `json:"downlink,omitzero"`
	RTT              Field[int64]   `json:"rtt,omitzero"`
	PageLoadTime     Field[int64]   `json:"page_load_time,omitzero"`
	Timezone         Field[string]  `json:"timezone,omitzero"`
	TimeOnPage       Field[int64]   `json:"time_on_page,omitzero"`
	ScrollDepth      Field[int64]   `json:"scroll_depth,omitzero"`
	ActiveTime       Field[int64]   `json:"active_time,omitzero"`

	// Filled by enrichment. Decoded values are cleared before the write.
	Municipality Field[string] `json:"municipality,omitzero"`
	Region       Field[string] `json:"region,omitzero"`
	Country      Field[string] `json:"country,omitzero"`
}

// Coordinates returns the patch's latitude and longitude when both carry
// a value.
func (p *Patch) Coordinates() (lat, lon float64, ok bool) {
	lat, latOK := p.Latitude.Get()
	lon, lonOK := p.Longitude.Get()
	return lat, lon, latOK && lonOK
}

// ApplyPlace merges an enrichment result into the patch.
func (p *Patch) ApplyPlace(place *geocode.Place) {
	if place == nil {
		return
	}
	if place.Municipality != nil {
		p.Municipality = Value(*place.Municipality)
	}
	if place.Region != nil {
		p.Region = Value(*place.Region)
	}
	if place.Country != nil {
		p.Country = Value(*place.Country)
	}
}

// column is one assignment derived from a patch.
type column struct {
	name  string
	value any
	// Behavioral metrics only ever grow.
	monotonic bool
}

// columns lists the fields that carry a value, in a stable order.
func (p *Patch) columns() []column {
	var cols []column
	add := func(name string, v any, ok bool, monotonic bool) {
		if ok {
			cols = append(cols, column{name: name, value: v, monotonic: monotonic})
		}
	}
	addString := func(name string, f Field[string]) {
		v, ok := f.Get()
		add(name, v, ok, false)
	}
	addInt := func(name string, f Field[int64], monotonic bool) {
		v, ok := f.Get()
		// Negative durations and depths are dropped.
		add(name, v, ok && (!monotonic || v >= 0), monotonic)
	}
	addFloat := func(name string, f Field[float64]) {
		v, ok := f.Get()
		add(name, v, ok, false)
	}

	addString("user_agent", p.UserAgent)
	addInt("screen_width", p.ScreenWidth, false)
	addInt("screen_height", p.ScreenHeight, false)
	addString("referrer", p.Referrer)
	addFloat("latitude", p.Latitude)
	addFloat("longitude", p.Longitude)
	addFloat("location_accuracy", p.LocationAccuracy)
	addString("municipality", p.Municipality)
	addString("region", p.Region)
	addString("country", p.Country)
	addString("language", p.Language)
	addString("platform", p.Platform)
	addString("connection_type", p.ConnectionType)
	addFloat("downlink", p.Downlink)
	addInt("rtt", p.RTT, false)
	addInt("page_load_time", p.PageLoadTime, false)
	addString("timezone", p.Timezone)
	addInt("time_on_page", p.TimeOnPage, true)
	addInt("scroll_depth", p.ScrollDepth, true)
	addInt("active_time", p.ActiveTime, true)
	return cols
}

// Result is the outcome of an upsert.
type Result struct {
	Created bool `json:"created"`
}

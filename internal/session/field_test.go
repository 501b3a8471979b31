package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldUnmarshal(t *testing.T) {
	t.Parallel()

	var v struct {
		Width    Field[int64]   `json:"width"`
		RTT      Field[int64]   `json:"rtt"`
		Referrer Field[string]  `json:"referrer"`
		Lat      Field[float64] `json:"lat"`
		Absent   Field[string]  `json:"absent"`
		Wrong    Field[int64]   `json:"wrong"`
		Huge     Field[int64]   `json:"huge"`
		Tiny     Field[int64]   `json:"tiny"`
		Large    Field[int64]   `json:"large"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{
		"width": 1920,
		"rtt": 49.6,
		"referrer": null,
		"lat": 50.85,
		"wrong": "wide",
		"huge": 1e19,
		"tiny": -1e19,
		"large": 9.2e18
	}`), &v))

	width, ok := v.Width.Get()
	assert.True(t, ok)
	assert.EqualValues(t, 1920, width)

	rtt, ok := v.RTT.Get()
	assert.True(t, ok)
	assert.EqualValues(t, 50, rtt)

	assert.True(t, v.Referrer.IsSet())
	_, ok = v.Referrer.Get()
	assert.False(t, ok)
	assert.Nil(t, v.Referrer.Ptr())

	lat, ok := v.Lat.Get()
	assert.True(t, ok)
	assert.InDelta(t, 50.85, lat, 1e-9)

	assert.False(t, v.Absent.IsSet())
	assert.True(t, v.Absent.IsZero())

	assert.True(t, v.Wrong.IsSet())
	_, ok = v.Wrong.Get()
	assert.False(t, ok)

	for name, f := range map[string]Field[int64]{"huge": v.Huge, "tiny": v.Tiny} {
		assert.True(t, f.IsSet(), name)
		_, ok = f.Get()
		assert.False(t, ok, name)
	}

	large, ok := v.Large.Get()
	assert.True(t, ok)
	assert.EqualValues(t, int64(9.2e18), large)
}

func TestFieldMarshalOmitsAbsent(t *testing.T) {
	t.Parallel()

	p := Patch{
		SessionID:   "s1",
		ScrollDepth: Value[int64](75),
		Referrer:    Null[string](),
	}

	out, err := json.Marshal(p)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "s1", got["session_id"])
	assert.EqualValues(t, 75, got["scroll_depth"])
	assert.Contains(t, got, "referrer")
	assert.Nil(t, got["referrer"])
	assert.NotContains(t, got, "user_agent")
	assert.NotContains(t, got, "municipality")
}

func TestPatchColumns(t *testing.T) {
	t.Parallel()

	p := Patch{
		Latitude:    Value(50.85),
		Longitude:   Value(4.35),
		Referrer:    Null[string](),
		ScrollDepth: Value[int64](40),
	}

	cols := p.columns()
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.name)
		assert.Equal(t, c.name == "scroll_depth", c.monotonic, c.name)
	}
	assert.Equal(t, []string{"latitude", "longitude", "scroll_depth"}, names)
}

func TestPatchColumnsDropNegativeMetrics(t *testing.T) {
	t.Parallel()

	p := Patch{
		RTT:         Value[int64](-1),
		TimeOnPage:  Value[int64](-7),
		ScrollDepth: Value[int64](0),
		ActiveTime:  Value[int64](-3),
	}

	cols := p.columns()
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.name)
	}
	assert.Equal(t, []string{"rtt", "scroll_depth"}, names)
}

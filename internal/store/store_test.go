package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Wuchinator/landing-analytics/internal/store"
	"github.com/Wuchinator/landing-analytics/internal/store/storetest"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	db := storetest.NewDB(t)
	require.NoError(t, store.Migrate(context.Background(), db, zaptest.NewLogger(t)))

	for _, table := range []string{
		store.TableSessions,
		store.TableVideoEvents,
		store.TableButtonClicks,
		store.TableFormSubmissions,
		store.TableInteractionEvents,
	} {
		var n int
		require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM "+table), table)
		assert.Zero(t, n, table)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	db := storetest.NewDB(t)
	ctx := context.Background()
	insert := `INSERT INTO sessions (session_id, timestamp) VALUES (?, ?)`

	_, err := db.ExecContext(ctx, insert, "s1", store.Now())
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, insert, "s1", store.Now())
	require.Error(t, err)
	assert.True(t, store.IsUniqueViolation(err))

	_, err = db.ExecContext(ctx, `INSERT INTO sessions (session_id) VALUES (?)`, "s2")
	require.Error(t, err, "timestamp is NOT NULL")
	assert.False(t, store.IsUniqueViolation(err))

	assert.True(t, store.IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, store.IsUniqueViolation(&pq.Error{Code: "23502"}))
	assert.False(t, store.IsUniqueViolation(nil))
}

func TestTimestampRoundTrip(t *testing.T) {
	t.Parallel()

	db := storetest.NewDB(t)
	ctx := context.Background()

	in, err := store.ParseTimestamp("2024-03-05T10:11:12.345+01:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05T09:11:12.345Z", in.String())

	_, err = db.ExecContext(ctx, `INSERT INTO button_clicks (session_id, button_type, timestamp) VALUES (?, ?, ?)`, "s1", "cta", in)
	require.NoError(t, err)

	var raw string
	require.NoError(t, db.GetContext(ctx, &raw, `SELECT timestamp FROM button_clicks`))
	assert.Equal(t, "2024-03-05T09:11:12.345Z", raw)

	var out store.Timestamp
	require.NoError(t, db.GetContext(ctx, &out, `SELECT timestamp FROM button_clicks`))
	assert.True(t, in.Equal(out.Time))
}

func TestTimestampSortsAsText(t *testing.T) {
	t.Parallel()

	early := store.NewTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	late := store.NewTimestamp(time.Date(2024, 1, 2, 3, 4, 5, int(900*time.Millisecond), time.UTC))
	assert.Len(t, early.String(), len(late.String()))
	assert.Less(t, early.String(), late.String())
}

func TestTimestampJSON(t *testing.T) {
	t.Parallel()

	var v struct {
		At store.Timestamp `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":"2024-06-01T12:00:00Z"}`), &v))
	assert.Equal(t, "2024-06-01T12:00:00.000Z", v.At.String())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"2024-06-01T12:00:00.000Z"}`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`{"at":null}`), &v))
	assert.True(t, v.At.IsZero())

	require.Error(t, json.Unmarshal([]byte(`{"at":"yesterday"}`), &v))
	require.Error(t, json.Unmarshal([]byte(`{"at":12}`), &v))
}

func TestPayload(t *testing.T) {
	t.Parallel()

	db := storetest.NewDB(t)
	ctx := context.Background()

	var in struct {
		Details store.Payload `json:"details"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"details": {"width": 1280, "height": 720}}`), &in))

	_, err := db.ExecContext(ctx, `INSERT INTO interaction_events (session_id, event_type, details, timestamp) VALUES (?, ?, ?, ?)`,
		"s1", "resize", in.Details, store.Now())
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO interaction_events (session_id, event_type, details, timestamp) VALUES (?, ?, ?, ?)`,
		"s1", "blur", store.Payload(nil), store.Now())
	require.NoError(t, err)

	var rows []store.Payload
	require.NoError(t, db.SelectContext(ctx, &rows, `SELECT details FROM interaction_events ORDER BY id`))
	require.Len(t, rows, 2)
	assert.JSONEq(t, `{"width":1280,"height":720}`, string(rows[0]))
	assert.True(t, rows[1].IsNull())

	out, err := json.Marshal(map[string]store.Payload{"a": rows[0], "b": rows[1]})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"width":1280,"height":720},"b":null}`, string(out))
}

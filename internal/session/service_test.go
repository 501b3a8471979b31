package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/Wuchinator/landing-analytics/internal/geocode"
	"github.com/Wuchinator/landing-analytics/internal/session"
	"github.com/Wuchinator/landing-analytics/internal/store"
	"github.com/Wuchinator/landing-analytics/internal/store/storetest"
	"github.com/Wuchinator/landing-analytics/internal/validation"
	"github.com/Wuchinator/landing-analytics/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type resolverFunc func(ctx context.Context, lat, lon float64) *geocode.Place

func (f resolverFunc) Resolve(ctx context.Context, lat, lon float64) *geocode.Place {
	return f(ctx, lat, lon)
}

type published struct {
	kind      string
	sessionID string
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []published
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, kind, sessionID string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, published{kind: kind, sessionID: sessionID})
	return p.err
}

func strp(s string) *string { return &s }

func brussels(context.Context, float64, float64) *geocode.Place {
	return &geocode.Place{
		Municipality: strp("Brussel"),
		Region:       strp("Brussels-Capital"),
		Country:      strp("België"),
	}
}

func newService(t *testing.T, resolver geocode.Resolver, timeout time.Duration) (*session.Service, *recordingPublisher) {
	t.Helper()

	logger := zaptest.NewLogger(t)
	repo := session.NewRepository(storetest.NewDB(t), logger)
	pub := &recordingPublisher{}
	return session.NewService(repo, resolver, pub, nil, session.Config{GeocodeTimeout: timeout}, logger), pub
}

func ts(t *testing.T, s string) store.Timestamp {
	t.Helper()
	v, err := store.ParseTimestamp(s)
	require.NoError(t, err)
	return v
}

func TestUpsertGeolocationPatchKeepsOtherFields(t *testing.T) {
	t.Parallel()

	svc, pub := newService(t, resolverFunc(brussels), time.Second)
	ctx := context.Background()

	res, err := svc.Upsert(ctx, &session.Patch{
		SessionID:    "S1",
		Timestamp:    ts(t, "2024-05-01T10:00:00Z"),
		UserAgent:    session.Value("Mozilla/5.0 (X11; Linux x86_64)"),
		ScreenWidth:  session.Value[int64](1920),
		ScreenHeight: session.Value[int64](1080),
		Referrer:     session.Value("https://google.com"),
		Language:     session.Value("nl-BE"),
		PageLoadTime: session.Value[int64](420),
	})
	require.NoError(t, err)
	assert.True(t, res.Created)

	res, err = svc.Upsert(ctx, &session.Patch{
		SessionID:        "S1",
		Timestamp:        ts(t, "2024-05-01T10:00:05Z"),
		Latitude:         session.Value(50.85),
		Longitude:        session.Value(4.35),
		LocationAccuracy: session.Value(30.0),
		// Sent but empty: must not wipe the stored value.
		Referrer: session.Null[string](),
	})
	require.NoError(t, err)
	assert.False(t, res.Created)

	got, err := svc.Get(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T10:00:00.000Z", got.Timestamp.String())
	assert.Equal(t, "Mozilla/5.0 (X11; Linux x86_64)", *got.UserAgent)
	assert.EqualValues(t, 1920, *got.ScreenWidth)
	assert.EqualValues(t, 1080, *got.ScreenHeight)
	assert.Equal(t, "https://google.com", *got.Referrer)
	assert.Equal(t, "nl-BE", *got.Language)
	assert.EqualValues(t, 420, *got.PageLoadTime)
	assert.InDelta(t, 50.85, *got.Latitude, 1e-9)
	assert.InDelta(t, 4.35, *got.Longitude, 1e-9)
	require.NotNil(t, got.Municipality)
	assert.Equal(t, "Brussel", *got.Municipality)
	assert.Equal(t, "Brussels-Capital", *got.Region)
	assert.Equal(t, "België", *got.Country)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Len(t, pub.calls, 2)
	assert.Equal(t, "session", pub.calls[0].kind)
}

func TestUpsertBehavioralMetricsOnlyGrow(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, geocode.Noop{}, time.Second)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, &session.Patch{SessionID: "s", Timestamp: store.Now()})
	require.NoError(t, err)

	_, err = svc.Upsert(ctx, &session.Patch{
		SessionID:   "s",
		Timestamp:   store.Now(),
		TimeOnPage:  session.Value[int64](40),
		ScrollDepth: session.Value[int64](80),
		ActiveTime:  session.Value[int64](35),
	})
	require.NoError(t, err)

	// A late heartbeat carrying smaller values.
	_, err = svc.Upsert(ctx, &session.Patch{
		SessionID:   "s",
		Timestamp:   store.Now(),
		TimeOnPage:  session.Value[int64](20),
		ScrollDepth: session.Value[int64](30),
		ActiveTime:  session.Value[int64](10),
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, "s")
	require.NoError(t, err)
	assert.EqualValues(t, 40, got.TimeOnPage)
	assert.EqualValues(t, 80, got.ScrollDepth)
	assert.EqualValues(t, 35, got.ActiveTime)

	_, err = svc.Upsert(ctx, &session.Patch{
		SessionID:   "s",
		Timestamp:   store.Now(),
		ScrollDepth: session.Value[int64](100),
	})
	require.NoError(t, err)

	got, err = svc.Get(ctx, "s")
	require.NoError(t, err)
	assert.EqualValues(t, 100, got.ScrollDepth)
	assert.EqualValues(t, 40, got.TimeOnPage)
}

// stalledProducer holds every send until the test ends.
type stalledProducer struct {
	sarama.SyncProducer
	release chan struct{}
}

func (s *stalledProducer) SendMessage(*sarama.ProducerMessage) (int32, int64, error) {
	<-s.release
	return 0, 0, nil
}

func TestUpsertDoesNotWaitOnStalledBroker(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	sp := &stalledProducer{release: make(chan struct{})}
	t.Cleanup(func() { close(sp.release) })

	pub := kafka.NewProducerFrom(sp, "landing-events", 100*time.Millisecond, logger)
	repo := session.NewRepository(storetest.NewDB(t), logger)
	svc := session.NewService(repo, geocode.Noop{}, pub, nil, session.Config{GeocodeTimeout: time.Second}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	res, err := svc.Upsert(ctx, &session.Patch{
		SessionID:  "slow",
		Timestamp:  store.Now(),
		TimeOnPage: session.Value[int64](9),
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Less(t, time.Since(start), 2*time.Second)

	got, err := svc.Get(ctx, "slow")
	require.NoError(t, err)
	assert.EqualValues(t, 9, got.TimeOnPage)
}

func TestUpsertActiveTimeFallsBackToTimeOnPage(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, geocode.Noop{}, time.Second)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, &session.Patch{
		SessionID:  "s",
		Timestamp:  store.Now(),
		TimeOnPage: session.Value[int64](12),
		ActiveTime: session.Value[int64](0),
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, "s")
	require.NoError(t, err)
	assert.EqualValues(t, 12, got.TimeOnPage)
	assert.EqualValues(t, 12, got.ActiveTime)
}

func TestUpsertValidation(t *testing.T) {
	t.Parallel()

	svc, pub := newService(t, geocode.Noop{}, time.Second)
	ctx := context.Background()

	tests := []struct {
		name  string
		patch *session.Patch
		field string
	}{
		{"MissingSessionID", &session.Patch{Timestamp: store.Now()}, "session_id"},
		{"MissingTimestamp", &session.Patch{SessionID: "s"}, "timestamp"},
	}
	for _, tt := range tests {
		_, err := svc.Upsert(ctx, tt.patch)
		require.Error(t, err, tt.name)
		assert.True(t, errors.Is(err, validation.ErrInvalid), tt.name)

		var verr *validation.Error
		require.True(t, errors.As(err, &verr), tt.name)
		assert.Equal(t, tt.field, verr.Fields[0].Field, tt.name)
	}

	_, err := svc.Get(ctx, "s")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Empty(t, pub.calls)
}

func TestUpsertConcurrentFirstWritesYieldOneRow(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	db := storetest.NewDB(t)
	svc := session.NewService(session.NewRepository(db, logger), geocode.Noop{}, nil, nil, session.Config{}, logger)
	ctx := context.Background()

	const writers = 8
	var (
		wg      sync.WaitGroup
		created atomic.Int32
		errs    = make(chan error, writers)
	)
	for i := 0; i < writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Upsert(ctx, &session.Patch{
				SessionID:   "race",
				Timestamp:   store.Now(),
				ScrollDepth: session.Value(int64(i * 10)),
			})
			if err != nil {
				errs <- err
				return
			}
			if res.Created {
				created.Add(1)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, created.Load())

	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM sessions WHERE session_id = 'race'`))
	assert.Equal(t, 1, n)

	got, err := svc.Get(ctx, "race")
	require.NoError(t, err)
	assert.EqualValues(t, (writers-1)*10, got.ScrollDepth)
}

func TestUpsertEnrichmentTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	// Ignores its context entirely.
	stuck := resolverFunc(func(context.Context, float64, float64) *geocode.Place {
		<-release
		return &geocode.Place{Municipality: strp("too late")}
	})

	svc, _ := newService(t, stuck, 50*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	res, err := svc.Upsert(ctx, &session.Patch{
		SessionID: "geo",
		Timestamp: store.Now(),
		Latitude:  session.Value(50.85),
		Longitude: session.Value(4.35),
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Less(t, time.Since(start), 2*time.Second)

	got, err := svc.Get(ctx, "geo")
	require.NoError(t, err)
	assert.InDelta(t, 50.85, *got.Latitude, 1e-9)
	assert.Nil(t, got.Municipality)
	assert.Nil(t, got.Region)
	assert.Nil(t, got.Country)
}

func TestUpsertEnrichmentFailure(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, geocode.Noop{}, time.Second)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, &session.Patch{SessionID: "S1", Timestamp: store.Now()})
	require.NoError(t, err)

	res, err := svc.Upsert(ctx, &session.Patch{
		SessionID: "S1",
		Timestamp: store.Now(),
		Latitude:  session.Value(50.85),
		Longitude: session.Value(4.35),
	})
	require.NoError(t, err)
	assert.False(t, res.Created)

	got, err := svc.Get(ctx, "S1")
	require.NoError(t, err)
	assert.NotNil(t, got.Latitude)
	assert.Nil(t, got.Municipality)
}

func TestUpsertSkipsEnrichmentForKnownPlace(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	counting := resolverFunc(func(ctx context.Context, lat, lon float64) *geocode.Place {
		calls.Add(1)
		return brussels(ctx, lat, lon)
	})
	svc, _ := newService(t, counting, time.Second)
	ctx := context.Background()

	geo := func() *session.Patch {
		return &session.Patch{
			SessionID: "s",
			Timestamp: store.Now(),
			Latitude:  session.Value(50.85),
			Longitude: session.Value(4.35),
		}
	}
	_, err := svc.Upsert(ctx, geo())
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, geo())
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	// New coordinates are a new grant.
	moved := geo()
	moved.Latitude = session.Value(51.05)
	_, err = svc.Upsert(ctx, moved)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestUpsertIgnoresClientSuppliedPlace(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, geocode.Noop{}, time.Second)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, &session.Patch{
		SessionID:    "s",
		Timestamp:    store.Now(),
		Municipality: session.Value("Atlantis"),
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, "s")
	require.NoError(t, err)
	assert.Nil(t, got.Municipality)
}

func TestUpsertPublishFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := session.NewService(session.NewRepository(storetest.NewDB(t), logger), nil, pub, nil, session.Config{}, logger)

	res, err := svc.Upsert(context.Background(), &session.Patch{SessionID: "s", Timestamp: store.Now()})
	require.NoError(t, err)
	assert.True(t, res.Created)
}

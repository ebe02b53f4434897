package playback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muse-stream-server/modules/common/model"
	"muse-stream-server/modules/queue"
)

type fakeController struct {
	finished  bool
	statusErr error
	loadErr   error
	infoErr   error
	loaded    []model.GeneratedAsset
	displayed []model.GeneratedAsset
}

func (f *fakeController) IsCurrentFinished(ctx context.Context) (bool, error) {
	return f.finished, f.statusErr
}

func (f *fakeController) Load(ctx context.Context, asset model.GeneratedAsset) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = append(f.loaded, asset)
	return nil
}

func (f *fakeController) UpdateDisplayedInfo(ctx context.Context, asset model.GeneratedAsset) error {
	if f.infoErr != nil {
		return f.infoErr
	}
	f.displayed = append(f.displayed, asset)
	return nil
}

func (f *fakeController) StreamStatus(ctx context.Context) (string, error) {
	return "live", nil
}

func testQueue(t *testing.T) *queue.Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return queue.NewManager(rdb)
}

func TestTickLoadsNextWhenFinished(t *testing.T) {
	qm := testQueue(t)
	ctrl := &fakeController{finished: true}
	l := NewLoop(qm, ctrl, time.Second, nil)

	ctx := context.Background()
	require.NoError(t, qm.EnqueuePlayback(ctx, model.GeneratedAsset{ID: "t1", Title: "First"}))

	l.tick(ctx)

	require.Len(t, ctrl.loaded, 1)
	assert.Equal(t, "t1", ctrl.loaded[0].ID)
	require.Len(t, ctrl.displayed, 1, "overlay info follows every load")

	current, err := qm.PeekCurrent(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "t1", current.ID)
}

func TestTickSkipsWhileStillPlaying(t *testing.T) {
	qm := testQueue(t)
	ctrl := &fakeController{finished: false}
	l := NewLoop(qm, ctrl, time.Second, nil)

	ctx := context.Background()
	require.NoError(t, qm.EnqueuePlayback(ctx, model.GeneratedAsset{ID: "t1"}))

	l.tick(ctx)

	assert.Empty(t, ctrl.loaded)
	depth, err := qm.PlaybackDepth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth, "queue untouched while a track is playing")
}

func TestTickEmptyQueueIsQuiet(t *testing.T) {
	qm := testQueue(t)
	ctrl := &fakeController{finished: true}
	l := NewLoop(qm, ctrl, time.Second, nil)

	l.tick(context.Background())
	assert.Empty(t, ctrl.loaded)
}

func TestTickControllerErrorRetriesNextTick(t *testing.T) {
	qm := testQueue(t)
	ctrl := &fakeController{finished: true, statusErr: errors.New("player down")}
	l := NewLoop(qm, ctrl, time.Second, nil)

	ctx := context.Background()
	require.NoError(t, qm.EnqueuePlayback(ctx, model.GeneratedAsset{ID: "t1"}))

	l.tick(ctx)
	assert.Empty(t, ctrl.loaded)

	depth, err := qm.PlaybackDepth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth, "track stays queued until the player answers")

	ctrl.statusErr = nil
	l.tick(ctx)
	require.Len(t, ctrl.loaded, 1)
}

func TestTickNotifiesOnChange(t *testing.T) {
	qm := testQueue(t)
	ctrl := &fakeController{finished: true}

	var notified []string
	l := NewLoop(qm, ctrl, time.Second, func(asset model.GeneratedAsset) {
		notified = append(notified, asset.ID)
	})

	ctx := context.Background()
	require.NoError(t, qm.EnqueuePlayback(ctx, model.GeneratedAsset{ID: "t1"}))

	l.tick(ctx)
	assert.Equal(t, []string{"t1"}, notified)
}

func TestTickInfoFailureDoesNotUndoLoad(t *testing.T) {
	qm := testQueue(t)
	ctrl := &fakeController{finished: true, infoErr: errors.New("overlay down")}
	l := NewLoop(qm, ctrl, time.Second, nil)

	ctx := context.Background()
	require.NoError(t, qm.EnqueuePlayback(ctx, model.GeneratedAsset{ID: "t1"}))

	l.tick(ctx)
	require.Len(t, ctrl.loaded, 1, "a stale overlay never blocks playback")
}

func TestHTTPControllerStatusAndLoad(t *testing.T) {
	var gotLoad loadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/player/status":
			json.NewEncoder(w).Encode(playerStatus{State: PlayerFinished, Stream: "live"})
		case "/player/load":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotLoad))
			w.WriteHeader(http.StatusNoContent)
		case "/player/info":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctrl := &HTTPController{baseURL: srv.URL, httpClient: srv.Client()}

	ctx := context.Background()
	finished, err := ctrl.IsCurrentFinished(ctx)
	require.NoError(t, err)
	assert.True(t, finished)

	stream, err := ctrl.StreamStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "live", stream)

	err = ctrl.Load(ctx, model.GeneratedAsset{ID: "t1", FilePath: "/a/t1.mp3", Title: "First", CoverPath: "/a/t1.webp"})
	require.NoError(t, err)
	assert.Equal(t, "t1", gotLoad.TrackID)
	assert.Equal(t, "/a/t1.webp", gotLoad.CoverPath)

	require.NoError(t, ctrl.UpdateDisplayedInfo(ctx, model.GeneratedAsset{ID: "t1", Title: "First"}))
}

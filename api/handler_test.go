package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mediadl/config"
	"mediadl/history"
	"mediadl/notify"
	"mediadl/process"
	"mediadl/task"
	"mediadl/task/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type testServer struct {
	router   *gin.Engine
	cfg      *config.Config
	manager  *task.Manager
	settings *config.Settings
	history  *history.Store
	board    *Board
	notifier *notify.Notifier
}

// blockingStart keeps every launched tool "running" until its context ends.
func blockingStart(ctx context.Context, _ process.Spec) (task.Process, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func setupTestServer(t *testing.T, launcher task.Launcher) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ExtractorBin:   "yt-dlp",
		FFBin:          "ffmpeg",
		DownloadDir:    t.TempDir(),
		TempDir:        t.TempDir(),
		IntakeEnabled:  true,
		RetryBackoff:   time.Millisecond,
		PredictTimeout: time.Second,
		FormatsTimeout: time.Second,
		KillGrace:      50 * time.Millisecond,
		AllowedOrigins: "chrome-extension://abc",
	}
	settings := config.NewSettings(cfg)
	n := notify.New()
	mgr, err := task.NewManager(cfg, settings, n, launcher)
	require.NoError(t, err)
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	board := NewBoard(10)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mgr.Shutdown(ctx)
		store.Close()
	})

	h := NewHandler(mgr, settings, store, board)
	return &testServer{
		router:   SetupRouter(h, cfg),
		cfg:      cfg,
		manager:  mgr,
		settings: settings,
		history:  store,
		board:    board,
		notifier: n,
	}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req, _ = http.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	s.router.ServeHTTP(w, req)
	return w
}

func TestHandleDownload(t *testing.T) {
	ctrl := gomock.NewController(t)
	launcher := mocks.NewMockLauncher(ctrl)
	launcher.EXPECT().Start(gomock.Any(), gomock.Any()).DoAndReturn(blockingStart).AnyTimes()
	s := setupTestServer(t, launcher)

	w := s.do("POST", "/download", `{"url": "https://example.com/v.mp4", "format": "18"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://example.com/v.mp4", resp["id"])

	w = s.do("POST", "/download", `{"url": "https://example.com/v.mp4"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do("POST", "/download", `{"url": ""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do("POST", "/download", `{"url": "https://example.com/x", "media_type": "image"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do("GET", "/jobs", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var jobs []task.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "https://example.com/v.mp4", jobs[0].URL)

	w = s.do("POST", "/set_browser_monitor_status", `{"enabled": false}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"enabled": false}`, w.Body.String())

	w = s.do("POST", "/download", `{"url": "https://example.com/other"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandleCancelJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	launcher := mocks.NewMockLauncher(ctrl)
	launcher.EXPECT().Start(gomock.Any(), gomock.Any()).DoAndReturn(blockingStart).AnyTimes()
	s := setupTestServer(t, launcher)

	w := s.do("POST", "/jobs/cancel", `{"url": "https://example.com/none"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusAccepted, s.do("POST", "/download", `{"url": "https://example.com/c"}`).Code)
	w = s.do("POST", "/jobs/cancel", `{"url": "https://example.com/c"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	s.manager.Wait()
	var last notify.Event
	for _, ev := range s.notifier.Drain(100) {
		last = ev
	}
	assert.Equal(t, notify.KindCancelled, last.Kind())
}

func TestHandleAnalyzeURL(t *testing.T) {
	s := setupTestServer(t, mocks.NewMockLauncher(gomock.NewController(t)))

	w := s.do("POST", "/analyze_url", `{"url": "https://www.instagram.com/reel/xyz/"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "instagram", resp["platform"])
	assert.Equal(t, true, resp["needs_cookies"])
}

func TestHandleGetFormats(t *testing.T) {
	ctrl := gomock.NewController(t)
	launcher := mocks.NewMockLauncher(ctrl)
	launcher.EXPECT().
		Start(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("executable file not found")).
		AnyTimes()
	s := setupTestServer(t, launcher)
	require.NoError(t, s.settings.Set(config.KeyUseRetries, false))

	w := s.do("POST", "/get_formats", `{"url": "https://www.youtube.com/watch?v=abc"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "youtube", resp["platform"])
	assert.NotEmpty(t, resp["error"])

	w = s.do("POST", "/get_formats", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHistory(t *testing.T) {
	s := setupTestServer(t, mocks.NewMockLauncher(gomock.NewController(t)))
	now := time.Now()
	_, err := s.history.Record(notify.Completed{ID: "a", At: now, Filename: "a.mp4"})
	require.NoError(t, err)
	_, err = s.history.Record(notify.Failed{ID: "b", At: now.Add(time.Second), Message: "boom"})
	require.NoError(t, err)

	w := s.do("GET", "/history", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].URL)

	w = s.do("GET", "/history?kind=completed&limit=1", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "a.mp4", entries[0].Filename)

	assert.Equal(t, http.StatusBadRequest, s.do("GET", "/history?kind=progress", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do("GET", "/history?limit=x", "").Code)

	w = s.do("DELETE", "/history?kind=failed", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed": 1}`, w.Body.String())
}

func TestHandleSettings(t *testing.T) {
	s := setupTestServer(t, mocks.NewMockLauncher(gomock.NewController(t)))

	w := s.do("PUT", "/settings", `{"retry_attempts": 5, "overwrite_existing_file": true}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, s.settings.RetryAttempts())
	assert.True(t, s.settings.OverwriteExisting())

	w = s.do("PUT", "/settings", `{"retry_attempts": "many"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do("PUT", "/settings", `{"no_such_setting": 1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do("GET", "/settings", "")
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(5), resp["retry_attempts"])
}

// closeNotifyRecorder lets gin's streaming helpers run against a recorder.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func TestHandleEvents(t *testing.T) {
	s := setupTestServer(t, mocks.NewMockLauncher(gomock.NewController(t)))
	s.board.Handle(notify.Queued{ID: "u1", At: time.Now(), Filename: "Preparing generic download..."})

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, "GET", "/jobs/events", nil)
	w := &closeNotifyRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.router.ServeHTTP(w, req)
	}()

	require.Eventually(t, func() bool {
		s.board.mu.Lock()
		defer s.board.mu.Unlock()
		return len(s.board.subs) == 1
	}, time.Second, 5*time.Millisecond)
	s.board.Handle(notify.Progress{ID: "u1", At: time.Now(), Status: "Downloading", Percent: 42})
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	assert.Contains(t, body, "event:queued")
	assert.Contains(t, body, "event:progress")
	assert.Contains(t, body, `"percent":42`)
}

func TestAuthMiddleware(t *testing.T) {
	s := setupTestServer(t, mocks.NewMockLauncher(gomock.NewController(t)))

	t.Run("Auth disabled", func(t *testing.T) {
		s.cfg.AuthEnable = false
		assert.Equal(t, http.StatusOK, s.do("GET", "/jobs", "").Code)
	})

	t.Run("Auth enabled, no token", func(t *testing.T) {
		s.cfg.AuthEnable = true
		s.cfg.AuthKey = "secret"
		assert.Equal(t, http.StatusUnauthorized, s.do("GET", "/jobs", "").Code)
	})

	t.Run("Auth enabled, wrong token", func(t *testing.T) {
		s.cfg.AuthEnable = true
		s.cfg.AuthKey = "secret"
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/jobs", nil)
		req.Header.Set("Authorization", "Bearer wrong-key")
		s.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Auth enabled, correct token", func(t *testing.T) {
		s.cfg.AuthEnable = true
		s.cfg.AuthKey = "secret"
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/jobs", nil)
		req.Header.Set("Authorization", "Bearer secret")
		s.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Health needs no token", func(t *testing.T) {
		s.cfg.AuthEnable = true
		assert.Equal(t, http.StatusOK, s.do("GET", "/health", "").Code)
	})
}

func TestCORSMiddleware(t *testing.T) {
	s := setupTestServer(t, mocks.NewMockLauncher(gomock.NewController(t)))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("OPTIONS", "/download", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "chrome-extension://abc", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	s.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBoard(t *testing.T) {
	b := NewBoard(2)
	now := time.Now()
	b.Handle(notify.Completed{ID: "a", At: now})
	b.Handle(notify.Queued{ID: "b", At: now})
	b.Handle(notify.Queued{ID: "c", At: now})

	var ids []string
	for _, ev := range b.Latest() {
		ids = append(ids, ev.JobID())
	}
	assert.Equal(t, []string{"b", "c"}, ids)

	events, unsubscribe := b.Subscribe()
	b.Handle(notify.Progress{ID: "b", At: now, Percent: 10})
	ev := <-events
	assert.Equal(t, notify.KindProgress, ev.Kind())
	unsubscribe()
	unsubscribe()
	_, open := <-events
	assert.False(t, open)
	assert.Equal(t, notify.KindProgress, b.Latest()[0].Kind())
}

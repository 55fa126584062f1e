package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/johnwmail/npaste/config"
	"github.com/johnwmail/npaste/internal/middleware"
	"github.com/johnwmail/npaste/internal/services"
	"github.com/johnwmail/npaste/storage"
	"github.com/johnwmail/npaste/storage/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testBodyLimit = 1024

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type pasteData struct {
	Content        string  `json:"content"`
	RemainingViews *int    `json:"remaining_views"`
	ExpiresAt      *string `json:"expires_at"`
}

func setupTestRouter(store storage.PasteStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	svc := services.NewPasteService(store, config.Default(), nil, logger)
	pastes := NewPasteHandler(svc, logger)
	views := NewViewHandler(svc, logger)
	system := NewSystemHandler(svc)

	r := gin.New()
	r.Use(middleware.RequestClock(true), middleware.BodyLimit(testBodyLimit))
	r.GET("/healthz", system.Health)
	r.POST("/create-paste", pastes.Create)
	r.GET("/get-paste/:id", pastes.Get)
	r.GET("/view-paste/:id", views.View)
	r.GET("/get-all-pastes", pastes.List)
	r.DELETE("/delete-paste/:id", pastes.Delete)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body io.Reader, nowMs int64) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if nowMs > 0 {
		req.Header.Set(middleware.TestNowHeader, strconv.FormatInt(nowMs, 10))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env
}

func createPaste(t *testing.T, r http.Handler, body string, nowMs int64) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/create-paste", strings.NewReader(body), nowMs)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	env := decode(t, w)
	var data struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.ID
}

func getPaste(t *testing.T, r http.Handler, id string, nowMs int64) (int, envelope, pasteData) {
	t.Helper()
	w := do(t, r, http.MethodGet, "/get-paste/"+id, nil, nowMs)
	env := decode(t, w)
	var data pasteData
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(env.Data, &data))
	}
	return w.Code, env, data
}

func TestCreate_Success(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())

	w := do(t, r, http.MethodPost, "/create-paste", strings.NewReader(`{"content":"hello"}`), 0)
	require.Equal(t, http.StatusCreated, w.Code)

	env := decode(t, w)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "Paste Created Successfully", env.Message)

	var data struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.ID, 8)
	assert.Equal(t, "http://localhost:3000/p/"+data.ID, data.URL)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "missing content", body: `{}`, message: "content is required and must be a non-empty string"},
		{name: "whitespace content", body: `{"content":"   \n"}`, message: "content is required and must be a non-empty string"},
		{name: "numeric content", body: `{"content":42}`, message: "content is required and must be a non-empty string"},
		{name: "null body", body: `null`, message: "content is required and must be a non-empty string"},
		{name: "empty body", body: ``, message: "content is required and must be a non-empty string"},
		{name: "zero ttl", body: `{"content":"x","ttl_seconds":0}`, message: "ttl_seconds must be an integer >= 1"},
		{name: "fractional ttl", body: `{"content":"x","ttl_seconds":1.5}`, message: "ttl_seconds must be an integer >= 1"},
		{name: "string ttl", body: `{"content":"x","ttl_seconds":"60"}`, message: "ttl_seconds must be an integer >= 1"},
		{name: "negative max_views", body: `{"content":"x","max_views":-1}`, message: "max_views must be an integer >= 1"},
		{name: "boolean max_views", body: `{"content":"x","max_views":true}`, message: "max_views must be an integer >= 1"},
		{name: "content checked first", body: `{"content":"","ttl_seconds":0,"max_views":0}`, message: "content is required and must be a non-empty string"},
		{name: "ttl checked before max_views", body: `{"content":"x","ttl_seconds":0,"max_views":0}`, message: "ttl_seconds must be an integer >= 1"},
		{name: "malformed json", body: `{"content":`, message: "Invalid JSON body"},
		{name: "array body", body: `["x"]`, message: "Invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupTestRouter(storage.NewMemoryStore())
			w := do(t, r, http.MethodPost, "/create-paste", strings.NewReader(tt.body), 0)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			env := decode(t, w)
			assert.Equal(t, "failure", env.Status)
			assert.Equal(t, tt.message, env.Message)
		})
	}
}

func TestCreate_IntegralFloatAccepted(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())
	id := createPaste(t, r, `{"content":"x","max_views":2.0}`, 0)

	code, _, data := getPaste(t, r, id, 0)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, data.RemainingViews)
	assert.Equal(t, 1, *data.RemainingViews)
}

func TestCreate_BodyTooLarge(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())
	body := `{"content":"` + strings.Repeat("a", testBodyLimit) + `"}`

	// known length is rejected before the handler runs
	w := do(t, r, http.MethodPost, "/create-paste", strings.NewReader(body), 0)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	// unknown length trips the reader limit inside the handler
	w = do(t, r, http.MethodPost, "/create-paste", io.NopCloser(strings.NewReader(body)), 0)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "Request body too large", decode(t, w).Message)
}

func TestCreate_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockPasteStore(ctrl)
	store.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, errors.New("connection refused"))

	r := setupTestRouter(store)
	w := do(t, r, http.MethodPost, "/create-paste", strings.NewReader(`{"content":"x"}`), 0)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	env := decode(t, w)
	assert.Equal(t, "Error creating paste", env.Message)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestCreate_IDExhaustion(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockPasteStore(ctrl)
	store.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(true, nil).Times(services.MaxIDAttempts)

	r := setupTestRouter(store)
	w := do(t, r, http.MethodPost, "/create-paste", strings.NewReader(`{"content":"x"}`), 0)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to generate unique paste ID", decode(t, w).Message)
}

func TestGet_MaxViews(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())
	id := createPaste(t, r, `{"content":"limited","max_views":2}`, 0)

	code, env, data := getPaste(t, r, id, 0)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Paste Retrieved Successfully", env.Message)
	assert.Equal(t, "limited", data.Content)
	require.NotNil(t, data.RemainingViews)
	assert.Equal(t, 1, *data.RemainingViews)
	assert.Nil(t, data.ExpiresAt)

	code, _, data = getPaste(t, r, id, 0)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, *data.RemainingViews)

	code, env, _ = getPaste(t, r, id, 0)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "failure", env.Status)
	assert.Equal(t, "Paste not found or has expired", env.Message)
}

func TestGet_TTLWithTestClock(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())
	const created = int64(1_700_000_000_000)
	id := createPaste(t, r, `{"content":"short lived","ttl_seconds":60}`, created)

	code, _, data := getPaste(t, r, id, created+30_000)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, data.RemainingViews)
	require.NotNil(t, data.ExpiresAt)
	assert.Equal(t, "2023-11-14T22:14:20.000Z", *data.ExpiresAt)

	code, _, _ = getPaste(t, r, id, created+60_000)
	assert.Equal(t, http.StatusOK, code, "deadline itself is still available")

	code, env, _ := getPaste(t, r, id, created+60_001)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Paste not found or has expired", env.Message)
}

func TestGet_Unlimited(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())
	id := createPaste(t, r, `{"content":"forever"}`, 0)

	for i := 0; i < 5; i++ {
		code, _, data := getPaste(t, r, id, 0)
		require.Equal(t, http.StatusOK, code)
		assert.Nil(t, data.RemainingViews)
		assert.Nil(t, data.ExpiresAt)
	}
}

func TestGet_ContentNotEscaped(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())
	id := createPaste(t, r, `{"content":"<b>bold</b> & \"q\""}`, 0)

	code, _, data := getPaste(t, r, id, 0)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, `<b>bold</b> & "q"`, data.Content)
}

func TestGet_NotFound(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())

	for _, id := range []string{"abcdef12", "not-an-id"} {
		code, env, _ := getPaste(t, r, id, 0)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "Paste not found", env.Message)
	}
}

func TestGet_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockPasteStore(ctrl)
	store.EXPECT().RecordView(gomock.Any(), "abcdef12", gomock.Any()).Return(nil, errors.New("timeout"))

	r := setupTestRouter(store)
	code, env, _ := getPaste(t, r, "abcdef12", 0)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Error fetching paste", env.Message)
}

func TestList(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())

	w := do(t, r, http.MethodGet, "/get-all-pastes", nil, 0)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, "All Pastes Retrieved Successfully", env.Message)
	assert.JSONEq(t, `[]`, string(env.Data))

	first := createPaste(t, r, `{"content":"one"}`, 1_000)
	second := createPaste(t, r, `{"content":"two","max_views":3}`, 2_000)

	w = do(t, r, http.MethodGet, "/get-all-pastes", nil, 0)
	require.Equal(t, http.StatusOK, w.Code)

	var list []struct {
		ID         string `json:"id"`
		Content    string `json:"content"`
		MaxViews   *int   `json:"max_views"`
		ViewsCount int    `json:"views_count"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, first, list[1].ID)
	require.NotNil(t, list[0].MaxViews)
	assert.Equal(t, 3, *list[0].MaxViews)
}

func TestList_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockPasteStore(ctrl)
	store.EXPECT().List(gomock.Any()).Return(nil, errors.New("boom"))

	r := setupTestRouter(store)
	w := do(t, r, http.MethodGet, "/get-all-pastes", nil, 0)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error fetching pastes", decode(t, w).Message)
}

func TestDelete(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())
	id := createPaste(t, r, `{"content":"bye"}`, 0)

	w := do(t, r, http.MethodDelete, "/delete-paste/"+id, nil, 0)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Paste Deleted Successfully", decode(t, w).Message)

	code, env, _ := getPaste(t, r, id, 0)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Paste not found", env.Message)

	w = do(t, r, http.MethodDelete, "/delete-paste/"+id, nil, 0)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Paste not found", decode(t, w).Message)
}

func TestDelete_UnavailablePaste(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())
	id := createPaste(t, r, `{"content":"once","max_views":1}`, 0)

	code, _, _ := getPaste(t, r, id, 0)
	require.Equal(t, http.StatusOK, code)

	w := do(t, r, http.MethodDelete, "/delete-paste/"+id, nil, 0)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDelete_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockPasteStore(ctrl)
	store.EXPECT().Delete(gomock.Any(), "abcdef12").Return(errors.New("boom"))

	r := setupTestRouter(store)
	w := do(t, r, http.MethodDelete, "/delete-paste/abcdef12", nil, 0)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error deleting paste", decode(t, w).Message)
}

func TestView_EscapesContent(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())
	id := createPaste(t, r, `{"content":"<script>alert(\"x\")</script> & 'q'"}`, 0)

	w := do(t, r, http.MethodGet, "/view-paste/"+id, nil, 0)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "&lt;script&gt;alert(&quot;x&quot;)&lt;/script&gt; &amp; &#x27;q&#x27;")
	assert.NotContains(t, body, "<script>")
	assert.NotContains(t, body, "&amp;lt;")
	assert.Contains(t, body, id)
	assert.NotContains(t, body, "remaining")
}

func TestView_ShowsLimits(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())
	const created = int64(1_700_000_000_000)
	id := createPaste(t, r, `{"content":"x","max_views":3,"ttl_seconds":60}`, created)

	w := do(t, r, http.MethodGet, "/view-paste/"+id, nil, created)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "2 remaining")
	assert.Contains(t, body, "This paste will expire after 2 more views")
	assert.Contains(t, body, "2023-11-14T22:14:20.000Z")

	w = do(t, r, http.MethodGet, "/view-paste/"+id, nil, created)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "This paste will expire after 1 more view<")
}

func TestView_SharesViewCountWithJSON(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())
	id := createPaste(t, r, `{"content":"x","max_views":2}`, 0)

	w := do(t, r, http.MethodGet, "/view-paste/"+id, nil, 0)
	require.Equal(t, http.StatusOK, w.Code)

	code, _, data := getPaste(t, r, id, 0)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, *data.RemainingViews)

	w = do(t, r, http.MethodGet, "/view-paste/"+id, nil, 0)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Paste Not Found")
}

func TestView_NotFound(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())

	w := do(t, r, http.MethodGet, "/view-paste/abcdef12", nil, 0)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<h1 class=\"error\">Paste Not Found</h1>")
}

func TestView_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockPasteStore(ctrl)
	store.EXPECT().RecordView(gomock.Any(), "abcdef12", gomock.Any()).Return(nil, errors.New("boom"))

	r := setupTestRouter(store)
	w := do(t, r, http.MethodGet, "/view-paste/abcdef12", nil, 0)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Server Error")
}

func TestHealth(t *testing.T) {
	r := setupTestRouter(storage.NewMemoryStore())

	w := do(t, r, http.MethodGet, "/healthz", nil, 0)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","ok":true}`, w.Body.String())
}

func TestHealth_StoreDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockPasteStore(ctrl)
	store.EXPECT().Ping(gomock.Any()).Return(errors.New("no route to host"))

	r := setupTestRouter(store)
	w := do(t, r, http.MethodGet, "/healthz", nil, 0)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"failure","ok":false}`, w.Body.String())
}

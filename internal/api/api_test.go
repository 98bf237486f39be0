package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palettemaker/internal/db"
	"palettemaker/internal/history"
	"palettemaker/internal/service"
	"palettemaker/internal/stats"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func TestHealth(t *testing.T) {
	t.Parallel()

	router := newRouterForTest(t)
	recorder := perform(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	body := decode(t, recorder)
	assert.Equal(t, 200, body.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body.Data))
}

func TestCreatePaletteThenReadBack(t *testing.T) {
	t.Parallel()

	router := newRouterForTest(t)

	recorder := perform(router, uploadRequest(t, map[string]string{"amount": "2"}))
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var created service.Result
	require.NoError(t, json.Unmarshal(decode(t, recorder).Data, &created))
	require.NotEmpty(t, created.ID)
	require.Len(t, created.Colors, 2)
	assert.ElementsMatch(t, []string{"#ff0000", "#0000ff"}, []string{created.Colors[0].Hex, created.Colors[1].Hex})

	recorder = perform(router, uploadRequest(t, map[string]string{"amount": "2"}))
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = perform(router, httptest.NewRequest(http.MethodGet, "/api/palettes/"+created.ID, nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	var detail struct {
		Palette  history.Record   `json:"palette"`
		Swatches []service.Swatch `json:"swatches"`
	}
	require.NoError(t, json.Unmarshal(decode(t, recorder).Data, &detail))
	assert.Equal(t, created.ID, detail.Palette.ID)
	assert.Len(t, detail.Swatches, 2)

	recorder = perform(router, httptest.NewRequest(http.MethodGet, "/api/palettes?limit=5", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	var page service.Page
	require.NoError(t, json.Unmarshal(decode(t, recorder).Data, &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 5, page.Limit)

	recorder = perform(router, httptest.NewRequest(http.MethodGet, "/api/palettes/"+created.ID+"/swatch.png?variant=list", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	sheet, err := png.Decode(recorder.Body)
	require.NoError(t, err)
	assert.Equal(t, 320, sheet.Bounds().Dx())

	recorder = perform(router, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	var overview stats.Overview
	require.NoError(t, json.Unmarshal(decode(t, recorder).Data, &overview))
	assert.Equal(t, 1, overview.Summary.TotalPalettes)
	assert.Len(t, overview.TopColors, 2)

	recorder = perform(router, httptest.NewRequest(http.MethodDelete, "/api/palettes/"+created.ID, nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = perform(router, httptest.NewRequest(http.MethodGet, "/api/palettes/"+created.ID, nil))
	require.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, 404, decode(t, recorder).Code)
}

func TestCreatePaletteValidation(t *testing.T) {
	t.Parallel()

	router := newRouterForTest(t)

	tests := []struct {
		name   string
		fields map[string]string
	}{
		{name: "zero amount", fields: map[string]string{"amount": "0"}},
		{name: "non numeric amount", fields: map[string]string{"amount": "many"}},
		{name: "coverage above one", fields: map[string]string{"minCoverage": "1.5"}},
		{name: "unknown method", fields: map[string]string{"method": "median-cut"}},
		{name: "upscale", fields: map[string]string{"scale": "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := perform(router, uploadRequest(t, tt.fields))
			assert.Equal(t, http.StatusBadRequest, recorder.Code, recorder.Body.String())
			assert.Equal(t, 400, decode(t, recorder).Code)
		})
	}
}

func TestCreatePaletteRequiresImage(t *testing.T) {
	t.Parallel()

	router := newRouterForTest(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("amount", "3"))
	require.NoError(t, writer.Close())

	request := httptest.NewRequest(http.MethodPost, "/api/palette", &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())

	recorder := perform(router, request)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestCreatePaletteRejectsNonImage(t *testing.T) {
	t.Parallel()

	router := newRouterForTest(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text, not pixels"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	request := httptest.NewRequest(http.MethodPost, "/api/palette", &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())

	recorder := perform(router, request)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestCreatePaletteRejectsCorruptImage(t *testing.T) {
	t.Parallel()

	router := newRouterForTest(t)

	var encoded bytes.Buffer
	require.NoError(t, png.Encode(&encoded, image.NewNRGBA(image.Rect(0, 0, 32, 32))))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "broken.png")
	require.NoError(t, err)
	_, err = part.Write(encoded.Bytes()[:encoded.Len()/2])
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	request := httptest.NewRequest(http.MethodPost, "/api/palette", &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())

	recorder := perform(router, request)
	assert.Equal(t, http.StatusBadRequest, recorder.Code, recorder.Body.String())
	assert.Equal(t, 400, decode(t, recorder).Code)
}

func TestCreatePaletteRejectsOversizedUpload(t *testing.T) {
	t.Parallel()

	handler := newHandlerForTest(t)
	handler.maxUploadBytes = 64
	router := NewRouter(handler)

	recorder := perform(router, uploadRequest(t, nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code, recorder.Body.String())
	assert.Equal(t, 413, decode(t, recorder).Code)
}

func TestUnknownPaletteIDs(t *testing.T) {
	t.Parallel()

	router := newRouterForTest(t)

	for _, request := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/palettes/not-a-uuid", nil),
		httptest.NewRequest(http.MethodGet, "/api/palettes/0b7a3a4e-4f0e-4a8e-9b55-2d7c2f6c2a11", nil),
		httptest.NewRequest(http.MethodDelete, "/api/palettes/0b7a3a4e-4f0e-4a8e-9b55-2d7c2f6c2a11", nil),
		httptest.NewRequest(http.MethodGet, "/api/palettes/0b7a3a4e-4f0e-4a8e-9b55-2d7c2f6c2a11/swatch.png", nil),
	} {
		recorder := perform(router, request)
		assert.Equal(t, http.StatusNotFound, recorder.Code, request.URL.Path)
	}
}

func TestListRejectsBadPaging(t *testing.T) {
	t.Parallel()

	router := newRouterForTest(t)
	recorder := perform(router, httptest.NewRequest(http.MethodGet, "/api/palettes?limit=ten", nil))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func newRouterForTest(t *testing.T) *gin.Engine {
	t.Helper()

	return NewRouter(newHandlerForTest(t))
}

func newHandlerForTest(t *testing.T) *Handler {
	t.Helper()

	dir := t.TempDir()
	database, _, err := db.Bootstrap(context.Background(), filepath.Join(dir, "palettes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	repo := history.NewRepository(database)
	palettes := service.NewPaletteService(repo, service.GenerateOptions{Amount: 5, Method: "bundle", Scale: 1}, nil)
	historyStore := service.NewHistoryService(repo, filepath.Join(dir, "swatches"))

	return NewHandler(palettes, historyStore, stats.NewService(database), nil)
}

func perform(router http.Handler, request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder) envelope {
	t.Helper()

	var body envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func uploadRequest(t *testing.T, fields map[string]string) *http.Request {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			if x < 2 {
				img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{B: 255, A: 255})
			}
		}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "split.png")
	require.NoError(t, err)
	require.NoError(t, png.Encode(part, img))
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	request := httptest.NewRequest(http.MethodPost, "/api/palette", &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

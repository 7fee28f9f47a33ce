package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"img-compress-go/internal/config"
)

func newTestServer() *Server {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewServer(config.DefaultConfig(), log)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleStatusIdle(t *testing.T) {
	rec := doRequest(newTestServer(), http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, false, data["running"])
}

func TestHandleFormats(t *testing.T) {
	rec := doRequest(newTestServer(), http.MethodGet, "/api/formats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Data, "jpeg")
	assert.Contains(t, resp.Data, "png")
}

func TestHandleCompressValidation(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodPost, "/api/compress", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/compress", `{"target_kb":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/compress", `{"input_path":"/x.jpg","target_kb":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/compress", `{"input_path":"/does/not/exist.jpg","target_kb":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuildParamsMergesConfig(t *testing.T) {
	s := newTestServer()

	params, err := s.buildParams(CompressRequest{
		InputPath:  "/tmp/in.jpg",
		TargetKB:   150,
		MaxQuality: 80,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(150*1024), params.TargetBytes)
	assert.Equal(t, 25, params.Bounds.Min, "min falls back to config")
	assert.Equal(t, 80, params.Bounds.Max, "max comes from the request")
	assert.Equal(t, "jpeg", params.Format.String())
	assert.False(t, params.SkipMarked)

	_, err = s.buildParams(CompressRequest{InputPath: "/tmp/in.jpg", TargetKB: 1, Format: "bmp"})
	assert.Error(t, err)
}

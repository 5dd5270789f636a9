package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rahul4469/speciessight/internal/models"
	"github.com/rahul4469/speciessight/internal/views"
)

// MockPipeline is a mock implementation of SpeciesPipeline
type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) ClassifyAndDescribe(ctx context.Context, req models.ClassificationRequest) (*models.CombinedOutput, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CombinedOutput), args.Error(1)
}

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

func lionOutput(confidence float64) *models.CombinedOutput {
	return &models.CombinedOutput{
		Species:            "Panthera leo",
		Confidence:         confidence,
		SpeciesName:        "African lion (Panthera leo)",
		Habitat:            "Savanna",
		Diet:               "Large ungulates",
		Behavior:           "Lives in prides",
		ConservationStatus: "Vulnerable",
	}
}

func newClassifyController(t *testing.T, pipeline SpeciesPipeline, maxUpload int64) *ClassifyController {
	t.Helper()
	tpl, err := views.ParseFS("pages/home.gohtml")
	require.NoError(t, err)
	return NewClassifyController(pipeline, tpl, 0.70, maxUpload, zap.NewNop())
}

func uploadRequest(t *testing.T, field string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile(field, "photo.bin")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/classify", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestClassifyController_GetHome(t *testing.T) {
	c := newClassifyController(t, new(MockPipeline), 8<<20)

	rr := httptest.NewRecorder()
	c.GetHome(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `action="/classify"`)
	assert.Contains(t, rr.Body.String(), "max 8 MB")
}

func TestClassifyController_PostClassify(t *testing.T) {
	t.Run("png upload", func(t *testing.T) {
		pipeline := new(MockPipeline)
		pipeline.On("ClassifyAndDescribe", mock.Anything, mock.MatchedBy(func(req models.ClassificationRequest) bool {
			return strings.HasPrefix(req.PhotoURL, "data:image/png;base64,")
		})).Return(lionOutput(0.95), nil)
		c := newClassifyController(t, pipeline, 8<<20)

		rr := httptest.NewRecorder()
		c.PostClassify(rr, uploadRequest(t, "photo", pngBytes))

		assert.Equal(t, http.StatusOK, rr.Code)
		body := rr.Body.String()
		assert.Contains(t, body, "Panthera leo")
		assert.Contains(t, body, "95%")
		assert.Contains(t, body, "Vulnerable")
		assert.Contains(t, body, `src="data:image/png;base64,`)
		assert.NotContains(t, body, "Low confidence")
		pipeline.AssertExpectations(t)
	})

	t.Run("jpeg upload with low confidence", func(t *testing.T) {
		pipeline := new(MockPipeline)
		pipeline.On("ClassifyAndDescribe", mock.Anything, mock.MatchedBy(func(req models.ClassificationRequest) bool {
			return strings.HasPrefix(req.PhotoURL, "data:image/jpeg;base64,")
		})).Return(lionOutput(0.42), nil)
		c := newClassifyController(t, pipeline, 8<<20)

		rr := httptest.NewRecorder()
		c.PostClassify(rr, uploadRequest(t, "photo", jpegBytes))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "42%")
		assert.Contains(t, rr.Body.String(), "Low confidence")
	})

	t.Run("unsupported type", func(t *testing.T) {
		pipeline := new(MockPipeline)
		c := newClassifyController(t, pipeline, 8<<20)

		rr := httptest.NewRecorder()
		c.PostClassify(rr, uploadRequest(t, "photo", []byte("GIF89a not really a lion")))

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), ClassificationFailedMessage)
		assert.Contains(t, rr.Body.String(), "image/gif")
		pipeline.AssertNotCalled(t, "ClassifyAndDescribe", mock.Anything, mock.Anything)
	})

	t.Run("missing file", func(t *testing.T) {
		pipeline := new(MockPipeline)
		c := newClassifyController(t, pipeline, 8<<20)

		rr := httptest.NewRecorder()
		c.PostClassify(rr, uploadRequest(t, "other", pngBytes))

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "no photo was uploaded")
	})

	t.Run("too large", func(t *testing.T) {
		pipeline := new(MockPipeline)
		c := newClassifyController(t, pipeline, 16)

		rr := httptest.NewRecorder()
		c.PostClassify(rr, uploadRequest(t, "photo", append(pngBytes, make([]byte, 64)...)))

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "larger than")
		pipeline.AssertNotCalled(t, "ClassifyAndDescribe", mock.Anything, mock.Anything)
	})

	t.Run("pipeline failure", func(t *testing.T) {
		pipeline := new(MockPipeline)
		pipeline.On("ClassifyAndDescribe", mock.Anything, mock.Anything).
			Return(nil, &models.ClassificationError{Err: models.ErrEmptyModelOutput})
		c := newClassifyController(t, pipeline, 8<<20)

		rr := httptest.NewRecorder()
		c.PostClassify(rr, uploadRequest(t, "photo", pngBytes))

		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Contains(t, rr.Body.String(), ClassificationFailedMessage)
	})
}

func TestClassifyController_PostAPIClassify(t *testing.T) {
	const lionURL = "https://example.com/lion.jpg"

	tests := []struct {
		name       string
		body       string
		result     *models.CombinedOutput
		err        error
		wantStatus int
		wantStage  string
	}{
		{name: "success", body: `{"photoUrl":"` + lionURL + `"}`, result: lionOutput(0.95), wantStatus: http.StatusOK},
		{name: "invalid photo url", body: `{"photoUrl":"nope"}`, err: fmt.Errorf("%w: bad", models.ErrInvalidPhotoURL), wantStatus: http.StatusBadRequest},
		{name: "classification error", body: `{"photoUrl":"` + lionURL + `"}`, err: &models.ClassificationError{Err: errors.New("upstream")}, wantStatus: http.StatusBadGateway, wantStage: models.StageClassify},
		{name: "description error", body: `{"photoUrl":"` + lionURL + `"}`, err: &models.DescriptionError{Species: "Panthera leo", Err: models.ErrEmptyModelOutput}, wantStatus: http.StatusBadGateway, wantStage: models.StageDescribe},
		{name: "unexpected error", body: `{"photoUrl":"` + lionURL + `"}`, err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := new(MockPipeline)
			pipeline.On("ClassifyAndDescribe", mock.Anything, mock.Anything).Return(tt.result, tt.err)
			c := newClassifyController(t, pipeline, 8<<20)

			rr := httptest.NewRecorder()
			c.PostAPIClassify(rr, httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			if tt.wantStatus == http.StatusOK {
				var out models.CombinedOutput
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
				assert.Equal(t, *tt.result, out)
				assert.Contains(t, rr.Body.String(), `"conservationStatus":"Vulnerable"`)
				return
			}

			var body apiError
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.wantStage, body.Stage)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "internal error", body.Error)
			}
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		pipeline := new(MockPipeline)
		c := newClassifyController(t, pipeline, 8<<20)

		rr := httptest.NewRecorder()
		c.PostAPIClassify(rr, httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(`{"photoUrl":`)))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		pipeline.AssertNotCalled(t, "ClassifyAndDescribe", mock.Anything, mock.Anything)
	})
}

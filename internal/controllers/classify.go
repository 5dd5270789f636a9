package controllers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/rahul4469/speciessight/internal/models"
	"github.com/rahul4469/speciessight/internal/services"
)

// ClassificationFailedMessage is shown on the upload page when the
// pipeline fails for any reason.
const ClassificationFailedMessage = "Classification failed. Please ensure the image is a supported format."

// SpeciesPipeline runs classify-then-describe. *services.Pipeline
// implements it.
type SpeciesPipeline interface {
	ClassifyAndDescribe(ctx context.Context, req models.ClassificationRequest) (*models.CombinedOutput, error)
}

// ClassifyController serves the upload page, the form upload and the JSON API.
type ClassifyController struct {
	pipeline       SpeciesPipeline
	template       Template
	threshold      float64
	maxUploadBytes int64
	logger         *zap.Logger
}

// HomePageData holds data for the upload page and its result card.
type HomePageData struct {
	MaxUploadMB int64
	Threshold   float64
	PhotoURL    string
	Result      *models.CombinedOutput
}

func NewClassifyController(pipeline SpeciesPipeline, tpl Template, threshold float64, maxUploadBytes int64, logger *zap.Logger) *ClassifyController {
	return &ClassifyController{
		pipeline:       pipeline,
		template:       tpl,
		threshold:      threshold,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.Named("classify"),
	}
}

var acceptedImageTypes = []string{"image/png", "image/jpeg"}

func (c *ClassifyController) homeData() HomePageData {
	return HomePageData{
		MaxUploadMB: (c.maxUploadBytes + (1 << 20) - 1) >> 20,
		Threshold:   c.threshold,
	}
}

// GetHome renders the upload form.
// GET /
func (c *ClassifyController) GetHome(w http.ResponseWriter, r *http.Request) {
	c.template.ExecuteHTTPWithStatus(w, r, http.StatusOK, pageData(r, "Identify wildlife", c.homeData()))
}

// PostClassify accepts a photo upload and renders the result card.
// POST /classify
func (c *ClassifyController) PostClassify(w http.ResponseWriter, r *http.Request) {
	home := c.homeData()

	photoURL, err := c.readUpload(w, r)
	if err != nil {
		var fileErr models.FileError
		msg := ClassificationFailedMessage
		if errors.As(err, &fileErr) {
			msg = fmt.Sprintf("%s (%s)", ClassificationFailedMessage, fileErr.Issue)
		}
		c.logger.Info("upload rejected", zap.Error(err))
		data := pageData(r, "Identify wildlife", home)
		data.Error = msg
		c.template.ExecuteHTTPWithStatus(w, r, http.StatusUnprocessableEntity, data)
		return
	}
	home.PhotoURL = photoURL

	result, err := c.pipeline.ClassifyAndDescribe(r.Context(), models.ClassificationRequest{PhotoURL: photoURL})
	if err != nil {
		c.logger.Warn("classification failed", zap.String("stage", services.StageOf(err)), zap.Error(err))
		data := pageData(r, "Identify wildlife", home)
		data.Error = ClassificationFailedMessage
		c.template.ExecuteHTTPWithStatus(w, r, statusFor(err), data)
		return
	}

	home.Result = result
	c.template.ExecuteHTTPWithStatus(w, r, http.StatusOK, pageData(r, result.Species, home))
}

// readUpload turns the "photo" form file into a data URI after checking
// its size and sniffed content type.
func (c *ClassifyController) readUpload(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, uploadBodyLimit(c.maxUploadBytes))
	if err := r.ParseMultipartForm(c.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", models.FileError{Issue: fmt.Sprintf("file is larger than %d MB", c.homeData().MaxUploadMB)}
		}
		return "", fmt.Errorf("failed to parse upload: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("photo")
	if err != nil {
		return "", models.FileError{Issue: "no photo was uploaded"}
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, c.maxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if len(content) == 0 {
		return "", models.FileError{Issue: "the photo is empty"}
	}
	if int64(len(content)) > c.maxUploadBytes {
		return "", models.FileError{Issue: fmt.Sprintf("file is larger than %d MB", c.homeData().MaxUploadMB)}
	}

	mtype := mimetype.Detect(content)
	if !mimetype.EqualsAny(mtype.String(), acceptedImageTypes...) {
		return "", models.FileError{Issue: fmt.Sprintf("unsupported type %s, use PNG or JPEG", mtype.String())}
	}

	return "data:" + mtype.String() + ";base64," + base64.StdEncoding.EncodeToString(content), nil
}

// apiError is the JSON error body of /api/classify.
type apiError struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// PostAPIClassify is the JSON form of the pipeline.
// POST /api/classify
func (c *ClassifyController) PostAPIClassify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, apiBodyLimit(c.maxUploadBytes))

	var req models.ClassificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "request body must be JSON with a photoUrl field"})
		return
	}

	result, err := c.pipeline.ClassifyAndDescribe(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		body := apiError{Error: err.Error(), Stage: services.StageOf(err)}
		switch {
		case status == http.StatusBadRequest:
			body.Error = models.ErrInvalidPhotoURL.Error()
		case status >= 500 && body.Stage == "":
			c.logger.Error("classification failed", zap.Error(err))
			body.Error = "internal error"
		default:
			c.logger.Warn("classification failed", zap.String("stage", body.Stage), zap.Error(err))
		}
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// statusFor maps pipeline errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidPhotoURL):
		return http.StatusBadRequest
	case services.StageOf(err) != "":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// uploadBodyLimit leaves headroom for the multipart envelope and the CSRF field.
func uploadBodyLimit(maxUploadBytes int64) int64 {
	return maxUploadBytes + 64<<10
}

// apiBodyLimit allows a data URI of a maximum size upload, which base64
// inflates by 4/3, plus the JSON envelope.
func apiBodyLimit(maxUploadBytes int64) int64 {
	return maxUploadBytes/3*4 + 4<<10
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RequestBodyLimit is the largest body any route accepts for the given
// upload size.
func RequestBodyLimit(maxUploadBytes int64) int64 {
	return max(uploadBodyLimit(maxUploadBytes), apiBodyLimit(maxUploadBytes))
}

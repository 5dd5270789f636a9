package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rahul4469/speciessight/internal/metrics"
	"github.com/rahul4469/speciessight/internal/models"
)

// SpeciesClassifier maps an image to a species label and confidence.
type SpeciesClassifier interface {
	Classify(ctx context.Context, photoURL string) (*models.ClassificationResult, error)
}

// SpeciesDescriber maps a species label to structured descriptive text.
type SpeciesDescriber interface {
	Describe(ctx context.Context, species string) (*models.DescriptionResult, error)
}

// Pipeline runs classification then description. It holds no per-request
// state and is safe for concurrent use.
type Pipeline struct {
	classifier SpeciesClassifier
	describer  SpeciesDescriber
	validate   *validator.Validate
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewPipeline wires the two stages. m may be nil.
func NewPipeline(classifier SpeciesClassifier, describer SpeciesDescriber, m *metrics.Metrics, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		classifier: classifier,
		describer:  describer,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		metrics:    m,
		logger:     logger.Named("pipeline"),
	}
}

// ClassifyAndDescribe identifies the species in req.PhotoURL and describes it.
// Either stage failing aborts the call; no partial result is returned.
func (p *Pipeline) ClassifyAndDescribe(ctx context.Context, req models.ClassificationRequest) (*models.CombinedOutput, error) {
	if err := p.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidPhotoURL, err)
	}

	// Step 1: classify
	classification, err := p.classify(ctx, req.PhotoURL)
	if err != nil {
		return nil, err
	}

	// Step 2: describe the classified species
	description, err := p.describe(ctx, classification.Species)
	if err != nil {
		return nil, err
	}

	return models.Combine(classification, description), nil
}

func (p *Pipeline) classify(ctx context.Context, photoURL string) (*models.ClassificationResult, error) {
	start := time.Now()
	result, err := p.classifier.Classify(ctx, photoURL)
	elapsed := time.Since(start)

	if err != nil {
		p.metrics.ObserveStage(models.StageClassify, metrics.OutcomeError, elapsed)
		p.logger.Warn("classification step failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return nil, &models.ClassificationError{Err: err}
	}
	if !result.Usable() {
		p.metrics.ObserveStage(models.StageClassify, metrics.OutcomeEmpty, elapsed)
		p.logger.Warn("classification step returned no usable output", zap.Duration("elapsed", elapsed))
		return nil, &models.ClassificationError{Err: models.ErrEmptyModelOutput}
	}

	p.metrics.ObserveStage(models.StageClassify, metrics.OutcomeSuccess, elapsed)
	p.metrics.ObserveConfidence(result.Confidence)
	p.logger.Info("species classified",
		zap.String("species", result.Species),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

func (p *Pipeline) describe(ctx context.Context, species string) (*models.DescriptionResult, error) {
	start := time.Now()
	result, err := p.describer.Describe(ctx, species)
	elapsed := time.Since(start)

	if err != nil {
		p.metrics.ObserveStage(models.StageDescribe, metrics.OutcomeError, elapsed)
		p.logger.Warn("description step failed", zap.String("species", species), zap.Error(err))
		return nil, &models.DescriptionError{Species: species, Err: err}
	}
	if !result.Usable() {
		p.metrics.ObserveStage(models.StageDescribe, metrics.OutcomeEmpty, elapsed)
		p.logger.Warn("description step returned no usable output", zap.String("species", species))
		return nil, &models.DescriptionError{Species: species, Err: models.ErrEmptyModelOutput}
	}

	p.metrics.ObserveStage(models.StageDescribe, metrics.OutcomeSuccess, elapsed)
	p.logger.Info("species described", zap.String("species", species), zap.Duration("elapsed", elapsed))
	return result, nil
}

// StageOf names the pipeline stage an error came from, or "" if it did not
// come from a stage.
func StageOf(err error) string {
	var classErr *models.ClassificationError
	if errors.As(err, &classErr) {
		return classErr.Stage()
	}
	var descErr *models.DescriptionError
	if errors.As(err, &descErr) {
		return descErr.Stage()
	}
	return ""
}

package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"moodwave/internal/queue"
	"moodwave/internal/storage"
	"moodwave/pkg/logger"
	"moodwave/pkg/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const storeTimeout = 10 * time.Second

// Repository stores journal records
type Repository interface {
	CreateAnalysis(ctx context.Context, a *model.Analysis) (bool, error)
}

type Processor struct {
	db Repository
}

// NewProcessor creates a journal processor writing to db
func NewProcessor(db Repository) *Processor {
	return &Processor{db: db}
}

// ProcessAnalysis stores one published analysis. Bodies that can never be
// stored are reported as poison so the queue drops them.
func (p *Processor) ProcessAnalysis(body []byte) error {
	var analysis model.Analysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return fmt.Errorf("failed to unmarshal analysis: %v: %w", err, queue.ErrPoison)
	}

	if err := validate(&analysis); err != nil {
		return fmt.Errorf("invalid analysis: %v: %w", err, queue.ErrPoison)
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	created, err := p.db.CreateAnalysis(ctx, &analysis)
	if errors.Is(err, storage.ErrInvalidData) {
		return fmt.Errorf("failed to store analysis: %v: %w", err, queue.ErrPoison)
	}
	if err != nil {
		return fmt.Errorf("failed to store analysis: %w", err)
	}

	if !created {
		logger.Info("Analysis already recorded", zap.String("analysis_id", analysis.ID))
		return nil
	}

	logger.Info("Analysis recorded",
		zap.String("analysis_id", analysis.ID),
		zap.String("session_id", analysis.SessionID),
		zap.String("status", string(analysis.Status)),
		zap.Duration("duration", analysis.Duration()))

	return nil
}

func validate(a *model.Analysis) error {
	if a.ID == "" {
		return fmt.Errorf("missing id")
	}
	if _, err := uuid.Parse(a.ID); err != nil {
		return fmt.Errorf("invalid id %q: %w", a.ID, err)
	}

	switch a.Status {
	case model.AnalysisStatusSucceeded:
		if a.Emotion == nil || a.Confidence == nil {
			return fmt.Errorf("succeeded analysis without result")
		}
	case model.AnalysisStatusFailed:
		if a.ErrorText == nil {
			return fmt.Errorf("failed analysis without error text")
		}
	default:
		return fmt.Errorf("unknown status %q", a.Status)
	}

	return nil
}

package service

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"snapsort/internal/category"
	"snapsort/internal/classify"
	apperrors "snapsort/internal/errors"
	"snapsort/internal/filter"
	"snapsort/internal/ingest"
	"snapsort/internal/logger"
	"snapsort/internal/observer"
	"snapsort/internal/store"
)

// jpegQuality is used when a filtered image is re-encoded.
const jpegQuality = 90

// Pipeline takes a staged upload through filtering, classification and the
// final commit into the gallery. A photo that cannot be decoded or
// classified is not dropped: it is committed to the error category with the
// failure recorded in its metadata, so nothing a device sent silently
// disappears.
type Pipeline struct {
	classifier classify.Classifier
	resolver   *category.Resolver
	store      *store.Store
	publisher  observer.Subject
}

// NewPipeline creates a processing pipeline.
func NewPipeline(classifier classify.Classifier, resolver *category.Resolver, st *store.Store, publisher observer.Subject) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		resolver:   resolver,
		store:      st,
		publisher:  publisher,
	}
}

// Process implements ingest.Processor. It returns an error only for
// infrastructure failures (staging reads, gallery writes); classification
// problems are routing decisions, not errors.
func (p *Pipeline) Process(ctx context.Context, up ingest.Upload) error {
	start := time.Now()
	log := logger.WithFields(logrus.Fields{
		"conn_id":  up.ConnID,
		"filename": up.Filename,
		"filter":   up.Filter,
	})
	p.publisher.NotifyObservers(ctx, observer.PipelineEvent{
		EventType: observer.PhotoReceived,
		Timestamp: start,
		Filename:  up.Filename,
		Filter:    up.Filter,
		Success:   true,
	})

	data, err := os.ReadFile(up.StagingPath)
	if err != nil {
		storageErr := apperrors.NewStorageError("failed to read staged photo", err)
		p.notifyFailed(ctx, up, start, "", storageErr.Error())
		return storageErr
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// The upload is committed exactly as it arrived, routed to the
		// error category.
		decodeErr := apperrors.NewDecodeError("failed to decode image", err)
		log.WithError(decodeErr).Warn("Upload is not a decodable image")
		return p.commit(ctx, log, up, start, category.Fault(decodeErr))
	}

	if filter.Alters(up.Filter) {
		filtered := filter.Apply(img, up.Filter)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, filtered, &jpeg.Options{Quality: jpegQuality}); err != nil {
			encodeErr := apperrors.NewInternalError("failed to encode filtered image", err)
			log.WithError(encodeErr).Error("Filter re-encode failed")
			return p.commit(ctx, log, up, start, category.Fault(encodeErr))
		}
		if err := os.WriteFile(up.StagingPath, buf.Bytes(), 0o644); err != nil {
			storageErr := apperrors.NewStorageError("failed to write filtered photo", err)
			p.notifyFailed(ctx, up, start, "", storageErr.Error())
			return storageErr
		}
		img = filtered
	}

	result, err := p.classifier.Classify(ctx, img)
	if err != nil {
		classifyErr := apperrors.NewClassificationError("failed to classify image", err)
		log.WithError(classifyErr).Warn("Classification failed")
		return p.commit(ctx, log, up, start, category.Fault(classifyErr))
	}

	return p.commit(ctx, log, up, start, p.resolver.Resolve(result))
}

// commit moves the staged photo into its resolved category and publishes
// the outcome event.
func (p *Pipeline) commit(ctx context.Context, log *logrus.Entry, up ingest.Upload, start time.Time, res category.Resolution) error {
	stored, err := p.store.Commit(up.StagingPath, res, store.Provenance{
		FilterDisplay: up.FilterDisplay,
		ReceivedAt:    up.ReceivedAt,
	})
	if err != nil {
		p.notifyFailed(ctx, up, start, res.Category.String(), err.Error())
		return err
	}

	elapsed := time.Since(start)
	if res.Category == category.Error {
		log.WithField("reason", res.Label).Warn("Photo routed to error category")
		p.notifyFailed(ctx, up, start, stored.Category.String(), res.Label)
		return nil
	}

	log.WithFields(logrus.Fields{
		"category":   stored.Category.String(),
		"label":      res.Label,
		"confidence": res.Confidence,
		"elapsed":    elapsed.String(),
	}).Info("Photo stored")
	p.publisher.NotifyObservers(ctx, observer.PipelineEvent{
		EventType:      observer.PhotoStored,
		Timestamp:      time.Now(),
		Filename:       up.Filename,
		Category:       stored.Category.String(),
		Filter:         up.Filter,
		ProcessingTime: elapsed,
		Success:        true,
	})
	return nil
}

func (p *Pipeline) notifyFailed(ctx context.Context, up ingest.Upload, start time.Time, categoryName, message string) {
	p.publisher.NotifyObservers(ctx, observer.PipelineEvent{
		EventType:      observer.PhotoFailed,
		Timestamp:      time.Now(),
		Filename:       up.Filename,
		Category:       categoryName,
		Filter:         up.Filter,
		ProcessingTime: time.Since(start),
		Success:        false,
		ErrorMessage:   message,
	})
}

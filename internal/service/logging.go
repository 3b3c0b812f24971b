package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/semdex/internal/models"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "semdex"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Ingest(ctx context.Context, files []models.File) (*models.IngestReport, error) {
	log := mw.log.With(
		zap.String("action", "ingest"),
		zap.Int("files", len(files)),
	)

	start := time.Now()
	report, err := mw.next.Ingest(ctx, files)
	log = log.With(zap.Duration("took", time.Since(start)))
	if err != nil {
		log.Error(err.Error())
		return report, err
	}

	log.Info("files ingested",
		zap.String("status", report.Status),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (mw *loggingMiddleware) Search(ctx context.Context, query string, k int) (*models.QueryResponse, error) {
	log := mw.log.With(
		zap.String("action", "search"),
		zap.String("query", query),
	)

	if k > 0 {
		log = log.With(
			zap.Int("k", k),
		)
	}

	start := time.Now()
	resp, err := mw.next.Search(ctx, query, k)
	log = log.With(zap.Duration("took", time.Since(start)))
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("documents searched", zap.Int("count", resp.Total))
	return resp, nil
}

func (mw *loggingMiddleware) Document(ctx context.Context, id string) (*models.Record, error) {
	log := mw.log.With(
		zap.String("action", "document"),
		zap.String("id", id),
	)

	rec, err := mw.next.Document(ctx, id)
	if err != nil {
		log.Warn(err.Error())
		return nil, err
	}

	log.Debug("document fetched")
	return rec, nil
}

func (mw *loggingMiddleware) Status(ctx context.Context) (*models.Status, error) {
	status, err := mw.next.Status(ctx)
	if err != nil {
		mw.log.Error(err.Error(), zap.String("action", "status"))
		return nil, err
	}
	return status, nil
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}

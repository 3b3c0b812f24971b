package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kit/kit/endpoint"

	"github.com/hyperjump/semdex/internal/models"
)

type EndpointSet struct {
	Ingest   endpoint.Endpoint
	Search   endpoint.Endpoint
	Document endpoint.Endpoint
	Status   endpoint.Endpoint
}

// MakeEndpoints wires every endpoint to svc.
func MakeEndpoints(svc Service) EndpointSet {
	return EndpointSet{
		Ingest:   IngestEndpoint(svc),
		Search:   SearchEndpoint(svc),
		Document: DocumentEndpoint(svc),
		Status:   StatusEndpoint(svc),
	}
}

type IngestRequest struct {
	Files []models.File `json:"files"`
}

// IngestEndpoint returns the report even when the batch was aborted, so
// callers can show which files made it in.
func IngestEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(IngestRequest)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected type %T", ErrInvalidRequest, request)
		}

		if len(req.Files) == 0 {
			return nil, fmt.Errorf("%w: no files provided", ErrInvalidRequest)
		}

		return svc.Ingest(ctx, req.Files)
	}
}

type SearchRequest = models.QueryRequest

func SearchEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(SearchRequest)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected type %T", ErrInvalidRequest, request)
		}

		if strings.TrimSpace(req.Query) == "" {
			return nil, fmt.Errorf("%w: query cannot be empty", ErrInvalidRequest)
		}

		return svc.Search(ctx, req.Query, req.K)
	}
}

type DocumentRequest struct {
	ID string `json:"id"`
}

func DocumentEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(DocumentRequest)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected type %T", ErrInvalidRequest, request)
		}

		if req.ID == "" {
			return nil, fmt.Errorf("%w: id is required", ErrInvalidRequest)
		}

		return svc.Document(ctx, req.ID)
	}
}

func StatusEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.Status(ctx)
	}
}

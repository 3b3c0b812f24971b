// Package natsrpc exposes the service as a NATS micro service.
package natsrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go/micro"

	"github.com/hyperjump/semdex/internal/models"
	"github.com/hyperjump/semdex/internal/service"
)

func IngestHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req service.IngestRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		report, _ := resp.(*models.IngestReport)
		if err != nil {
			var data []byte
			if report != nil {
				data, _ = json.Marshal(report)
			}
			respondError(r, err, data)
			return
		}

		if report == nil {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(report)
	}
}

func QueryHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req service.SearchRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			respondError(r, err, nil)
			return
		}

		results, ok := resp.(*models.QueryResponse)
		if !ok {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(results)
	}
}

// DocumentHandler accepts either {"id": "..."} or the bare id.
func DocumentHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		req, err := decodeDocumentRequest(r.Data())
		if err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			respondError(r, err, nil)
			return
		}

		rec, ok := resp.(*models.Record)
		if !ok {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(rec)
	}
}

func StatusHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		ctx := context.Background()
		resp, err := endpoint(ctx, nil)
		if err != nil {
			respondError(r, err, nil)
			return
		}

		status, ok := resp.(*models.Status)
		if !ok {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(status)
	}
}

func decodeDocumentRequest(data []byte) (service.DocumentRequest, error) {
	var req service.DocumentRequest
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return req, errors.New("id is required")
	}
	if data[0] == '{' {
		if err := json.Unmarshal(data, &req); err != nil {
			return req, err
		}
		return req, nil
	}
	req.ID = string(data)
	return req, nil
}

func respondError(r micro.Request, err error, data []byte) {
	code := strconv.Itoa(service.StatusCode(err))
	r.Error(code, err.Error(), data)
}

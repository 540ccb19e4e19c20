// Package web exposes the read-only registry query surface consumed by
// external dashboards and indexers. No authorization is required.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/deedflow/deedflow/internal/platform/errors"
	"github.com/deedflow/deedflow/internal/registry/domain/event"
	"github.com/deedflow/deedflow/internal/registry/domain/property"
	"github.com/deedflow/deedflow/internal/registry/storage"
	"google.golang.org/grpc/codes"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Queries is the read-only slice of the workflow engine the handler needs.
type Queries interface {
	Get(ctx context.Context, id uint64) (property.Property, error)
	ListAsSeller(ctx context.Context, address string) ([]uint64, error)
	ListAsBuyer(ctx context.Context, address string) ([]uint64, error)
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
	ListEventsByProperty(ctx context.Context, id uint64, afterSeq uint64, limit int) ([]event.Event, error)
	Statistics(ctx context.Context) (storage.RegistryStatistics, error)
}

// NewHandler builds the HTTP handler for the query server.
func NewHandler(queries Queries) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /v1/properties/{id}", handleGetProperty(queries))
	mux.HandleFunc("GET /v1/properties/{id}/events", handlePropertyEvents(queries))
	mux.HandleFunc("GET /v1/parties/{address}/selling", handlePartyIndex(queries, true))
	mux.HandleFunc("GET /v1/parties/{address}/buying", handlePartyIndex(queries, false))
	mux.HandleFunc("GET /v1/events", handleListEvents(queries))
	mux.HandleFunc("GET /v1/statistics", handleStatistics(queries))
	return mux
}

type propertyResponse struct {
	ID               uint64 `json:"id"`
	Seller           string `json:"seller"`
	Buyer            string `json:"buyer"`
	Notary           string `json:"notary"`
	Government       string `json:"government,omitempty"`
	DocHash          string `json:"docHash"`
	Status           string `json:"status"`
	NotaryApproved   bool   `json:"notaryApproved"`
	BuyerApproved    bool   `json:"buyerApproved"`
	GovernmentSealed bool   `json:"governmentSealed"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

type eventResponse struct {
	Seq        uint64 `json:"seq"`
	Name       string `json:"name"`
	PropertyID uint64 `json:"propertyId"`
	Actor      string `json:"actor"`
	Subject    string `json:"subject,omitempty"`
	DocHash    string `json:"docHash,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	Timestamp  string `json:"timestamp"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toPropertyResponse(p property.Property) propertyResponse {
	return propertyResponse{
		ID:               p.ID,
		Seller:           p.Seller,
		Buyer:            p.Buyer,
		Notary:           p.Notary,
		Government:       p.Government,
		DocHash:          p.DocHash,
		Status:           property.StatusLabel(p.Status),
		NotaryApproved:   p.NotaryApproved,
		BuyerApproved:    p.BuyerApproved,
		GovernmentSealed: p.GovernmentSealed,
		CreatedAt:        p.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:        p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toEventResponses(events []event.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, evt := range events {
		out = append(out, eventResponse{
			Seq:        evt.Seq,
			Name:       string(evt.Name),
			PropertyID: evt.PropertyID,
			Actor:      evt.Actor,
			Subject:    evt.Subject,
			DocHash:    evt.DocHash,
			RequestID:  evt.RequestID,
			Timestamp:  evt.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}

func handleGetProperty(queries Queries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		p, err := queries.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPropertyResponse(p))
	}
}

func handlePropertyEvents(queries Queries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		afterSeq, limit, ok := parsePage(w, r)
		if !ok {
			return
		}
		events, err := queries.ListEventsByProperty(r.Context(), id, afterSeq, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": toEventResponses(events)})
	}
}

func handlePartyIndex(queries Queries, asSeller bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address := strings.TrimSpace(r.PathValue("address"))
		if address == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Code:    string(apperrors.CodeIdentityEmpty),
				Message: "address is required",
			})
			return
		}
		var (
			ids []uint64
			err error
		)
		if asSeller {
			ids, err = queries.ListAsSeller(r.Context(), address)
		} else {
			ids, err = queries.ListAsBuyer(r.Context(), address)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"address": address, "propertyIds": ids})
	}
}

func handleListEvents(queries Queries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		afterSeq, limit, ok := parsePage(w, r)
		if !ok {
			return
		}
		events, err := queries.ListEvents(r.Context(), afterSeq, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": toEventResponses(events)})
	}
}

func handleStatistics(queries Queries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := queries.Statistics(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"propertyCount":  stats.PropertyCount,
			"completedCount": stats.CompletedCount,
			"cancelledCount": stats.CancelledCount,
			"eventCount":     stats.EventCount,
		})
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    string(apperrors.CodeUnknown),
			Message: "property id must be a non-negative integer",
		})
		return 0, false
	}
	// Identifier 0 is reserved to mean "does not exist".
	if id == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Code:    string(apperrors.CodePropertyNotFound),
			Message: "property 0 does not exist",
		})
		return 0, false
	}
	return id, true
}

func parsePage(w http.ResponseWriter, r *http.Request) (afterSeq uint64, limit int, ok bool) {
	limit = defaultPageLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("after_seq")); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Code:    string(apperrors.CodeUnknown),
				Message: "after_seq must be a non-negative integer",
			})
			return 0, 0, false
		}
		afterSeq = value
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Code:    string(apperrors.CodeUnknown),
				Message: "limit must be a positive integer",
			})
			return 0, 0, false
		}
		limit = value
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return afterSeq, limit, true
}

func writeError(w http.ResponseWriter, err error) {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		writeJSON(w, httpStatus(domainErr.Code), errorResponse{
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
		})
		return
	}
	log.Printf("query handler error: %v", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Code:    string(apperrors.CodeUnknown),
		Message: "internal error",
	})
}

// httpStatus maps domain codes onto HTTP statuses for the JSON surface.
func httpStatus(code apperrors.Code) int {
	switch code.GRPCCode() {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.FailedPrecondition, codes.Aborted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode query response: %v", err)
	}
}

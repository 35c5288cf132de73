package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/tuya-homie-gateway/internal/device"
	"github.com/nerrad567/tuya-homie-gateway/internal/product"
)

// metadataTimeout bounds the backend call behind ?metadata=true.
const metadataTimeout = 10 * time.Second

// deviceSummary is one entry of GET /api/v1/devices.
type deviceSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ProductName string   `json:"product_name,omitempty"`
	Nodes       []string `json:"nodes"`
	Properties  int      `json:"properties"`
}

// deviceDetail is the body of GET /api/v1/devices/{name}.
type deviceDetail struct {
	device.Device
	Assignment product.Assignment `json:"assignment"`
	Metadata   json.RawMessage    `json:"metadata,omitempty"`
}

// handleListDevices returns every device in the registry snapshot.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.Devices()
	out := make([]deviceSummary, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceSummary{
			ID:          d.ID,
			Name:        d.Name,
			ProductName: d.ProductName,
			Nodes:       s.products.Assign(d.ProductName, d.Properties).Nodes(),
			Properties:  len(d.Properties),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": out, "count": len(out)})
}

// handleGetDevice returns one device with its node assignment.
//
// The path segment is the device name as used in Homie topics; a raw
// backend id is accepted too. Query parameters:
//   - metadata=true: include the backend's /device/{id} document
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id, ok := s.registry.IDFor(name)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	d, ok := s.registry.Device(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	detail := deviceDetail{
		Device:     d,
		Assignment: s.products.Assign(d.ProductName, d.Properties),
	}

	if raw := r.URL.Query().Get("metadata"); raw != "" {
		want, err := strconv.ParseBool(raw)
		if err != nil {
			writeBadRequest(w, "metadata must be a boolean")
			return
		}
		if want {
			if s.metadata == nil {
				writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "backend metadata not available")
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), metadataTimeout)
			defer cancel()
			meta, err := s.metadata.Metadata(ctx, d.ID)
			if err != nil {
				s.logger.Warn("backend metadata fetch failed", "device_id", d.ID, "error", err)
				writeError(w, http.StatusBadGateway, ErrCodeBadGateway, "backend metadata fetch failed")
				return
			}
			detail.Metadata = meta
		}
	}

	writeJSON(w, http.StatusOK, detail)
}

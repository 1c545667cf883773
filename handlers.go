package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kwv/rigidreg/geom"
)

// maxAlignBody caps the size of a POST /api/align request body
const maxAlignBody = 4 << 20

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *geom.StateTracker, aligner *geom.Aligner, config *geom.Config, publisher *geom.Publisher) http.Handler {
	if config == nil {
		config = geom.DefaultConfig()
	}
	if aligner == nil {
		aligner = geom.NewAlignerFromConfig(config.Alignment)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		status := struct {
			Status        string    `json:"status"`
			Timestamp     time.Time `json:"timestamp"`
			HasAlignments bool      `json:"hasAlignments"`
		}{
			Status:        "ok",
			Timestamp:     time.Now(),
			HasAlignments: stateTracker.HasAlignments(),
		}
		writeJSON(w, http.StatusOK, status)
	})

	mux.HandleFunc("POST /api/align", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAlignBody))
		if err != nil {
			http.Error(w, "Error reading request body", http.StatusBadRequest)
			return
		}

		set, err := geom.ParseCorrespondences(body, "json")
		if err != nil {
			log.Printf("[HTTP] /api/align: invalid input: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		rec, err := alignSet(aligner, set)
		if err != nil {
			if errors.Is(err, geom.ErrNoPairs) {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			log.Printf("[HTTP] /api/align: alignment failed: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		recordAlignment(stateTracker, publisher, set, rec)
		log.Printf("[HTTP] /api/align: %s fitted from %d pairs (rmsd=%.6f)", rec.ID, rec.Count, rec.RMSD)
		writeJSON(w, http.StatusOK, rec)
	})

	mux.HandleFunc("GET /api/transforms", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, stateTracker.List())
	})

	mux.HandleFunc("GET /api/transforms/{id}", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := stateTracker.Get(r.PathValue("id"))
		if !ok {
			http.Error(w, "Alignment not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	// Overlay of a fitted set: /render/{id}.png or /render/{id}.svg
	mux.HandleFunc("GET /render/{file}", func(w http.ResponseWriter, r *http.Request) {
		file := r.PathValue("file")
		var id, format string
		switch {
		case strings.HasSuffix(file, ".png"):
			id, format = strings.TrimSuffix(file, ".png"), "png"
		case strings.HasSuffix(file, ".svg"):
			id, format = strings.TrimSuffix(file, ".svg"), "svg"
		default:
			http.Error(w, "Unsupported render format", http.StatusNotFound)
			return
		}

		rec, ok := stateTracker.Get(id)
		if !ok {
			http.Error(w, "Alignment not found", http.StatusNotFound)
			return
		}
		set, ok := stateTracker.Set(id)
		if !ok {
			http.Error(w, "Correspondences not available for "+id, http.StatusNotFound)
			return
		}

		overlay, err := geom.NewOverlay(set, rec.Transform)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Cache-Control", "no-cache")
		if format == "png" {
			w.Header().Set("Content-Type", "image/png")
			if err := geom.NewOverlayRenderer(overlay, config.Render).WritePNG(w); err != nil {
				log.Printf("[HTTP] Error encoding overlay PNG: %v", err)
			}
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		if err := geom.NewVectorOverlayRenderer(overlay, config.Render).RenderToSVG(w); err != nil {
			log.Printf("[HTTP] Error rendering overlay SVG: %v", err)
		}
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Error encoding response: %v", err)
	}
}

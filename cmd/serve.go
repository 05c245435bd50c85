package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradeware/exportguard/internal/report"
	"github.com/tradeware/exportguard/internal/storage"
	"github.com/tradeware/exportguard/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook and decision API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		env, err := initEvaluator(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ctx, env),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// packCache remembers when each shipment's audit pack was generated so a
// pack is rebuilt only after one of its documents changes.
type packCache struct {
	objects *storage.Memory

	mu        sync.Mutex
	generated map[string]time.Time
}

func newPackCache() *packCache {
	return &packCache{
		objects:   storage.NewMemory(),
		generated: make(map[string]time.Time),
	}
}

func (p *packCache) generatedAt(key string) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.generated[key]
	return t, ok
}

func (p *packCache) mark(key string, t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generated[key] = t
}

func newRouter(baseCtx context.Context, env *evalEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	packs := newPackCache()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhook/evaluate", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			OrganizationID string `json:"organization_id"`
			Reference      string `json:"reference"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.OrganizationID == "" || body.Reference == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "organization_id and reference are required"})
			return
		}

		// Evaluation runs in the background; the caller polls the decision
		// endpoint for the outcome.
		go func() {
			res, err := env.Evaluator.EvaluateShipment(baseCtx, body.OrganizationID, body.Reference)
			if err != nil {
				zap.L().Error("webhook evaluation failed",
					zap.String("reference", body.Reference),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("webhook evaluation complete",
				zap.String("reference", body.Reference),
				zap.String("decision", string(res.Decision)),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":    "accepted",
			"reference": body.Reference,
		})
	})

	r.Get("/shipments/{reference}/decision", func(w http.ResponseWriter, req *http.Request) {
		org := req.URL.Query().Get("org")
		if org == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "org query parameter is required"})
			return
		}
		ref := chi.URLParam(req, "reference")

		res, err := env.Evaluator.EvaluateShipment(req.Context(), org, ref)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "shipment not found"})
				return
			}
			zap.L().Error("decision request failed",
				zap.String("reference", ref),
				zap.Error(err),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "evaluation failed"})
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Get("/shipments/{reference}/report", func(w http.ResponseWriter, req *http.Request) {
		org := req.URL.Query().Get("org")
		if org == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "org query parameter is required"})
			return
		}
		ref := chi.URLParam(req, "reference")
		ctx := req.Context()

		sh, err := env.Store.GetShipmentByReference(ctx, org, ref)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "shipment not found"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "load shipment failed"})
			return
		}
		docs, err := env.Store.ListDocuments(ctx, org, store.DocumentFilter{ShipmentID: sh.ID})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list documents failed"})
			return
		}

		key := fmt.Sprintf("%s/%s/audit-pack.xlsx", org, sh.ID)
		if t, ok := packs.generatedAt(key); ok && storage.PackFresh(t, docs) {
			if b, ok := packs.objects.Get(key); ok {
				writeWorkbookBytes(w, sh.Reference, b)
				return
			}
		}

		results, err := env.Store.ListComplianceResults(ctx, org, sh.ID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list results failed"})
			return
		}
		var buf bytes.Buffer
		if err := report.WriteWorkbook(&buf, sh, docs, results); err != nil {
			zap.L().Error("audit pack generation failed",
				zap.String("reference", ref),
				zap.Error(err),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "report generation failed"})
			return
		}
		if err := packs.objects.Upload(ctx, key, bytes.NewReader(buf.Bytes())); err != nil {
			zap.L().Warn("audit pack cache write failed", zap.Error(err))
		} else {
			packs.mark(key, time.Now().UTC())
		}
		writeWorkbookBytes(w, sh.Reference, buf.Bytes())
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeWorkbookBytes(w http.ResponseWriter, reference string, b []byte) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reference+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rl1809/train-booking/internal/metrics"
	"github.com/rl1809/train-booking/internal/tracing"
)

const headerRequestID = "X-Request-ID"

// RequestLogger attaches a request-scoped logger to the context, records
// the request in metrics and logs one line when it completes.
func RequestLogger(base zerolog.Logger, rec *metrics.Recorder) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			requestID := r.Header.Get(headerRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(headerRequestID, requestID)

			lc := base.With().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path)
			if traceID := tracing.TraceID(ctx); traceID != "" {
				lc = lc.Str("trace_id", traceID)
			}
			logger := lc.Logger()

			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r.WithContext(logger.WithContext(ctx)))

			rec.ObserveHTTPRequest(r.Method, routeTemplate(r), sr.status)
			logger.Info().
				Int("status", sr.status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requireToken rejects requests without a valid bearer token: 401 when it is
// missing, 403 when it does not verify.
func (h *HTTPHandler) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := h.auth.ParseToken(bearerToken(r.Header.Get("Authorization")))
		if errors.Is(err, errMissingToken) {
			writeAuthError(w, http.StatusUnauthorized)
			return
		}
		if err != nil {
			writeAuthError(w, http.StatusForbidden)
			return
		}
		p.Admin = h.auth.IsAdminKey(r.Header.Get("X-API-Key"))

		ctx := withPrincipal(r.Context(), p)
		zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Int64("user_id", p.UserID)
		})
		next(w, r.WithContext(ctx))
	}
}

func (h *HTTPHandler) requireAdminKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.auth.IsAdminKey(r.Header.Get("X-API-Key")) {
			writeAuthError(w, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// authorize writes the failure response itself and reports whether the
// handler may continue.
func (h *HTTPHandler) authorize(w http.ResponseWriter, r *http.Request, action string, ownerID int64) bool {
	p, _ := principalFrom(r.Context())
	ok, err := h.authz.Allow(r.Context(), p, action, ownerID)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("action", action).Msg("authorization failed")
		writeError(w, http.StatusInternalServerError, codeInternalError, "Internal server error")
		return false
	}
	if !ok {
		writeError(w, http.StatusForbidden, codeForbidden, "Forbidden")
		return false
	}
	return true
}

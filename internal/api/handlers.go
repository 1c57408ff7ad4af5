package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"converterservice/internal/service"
	"converterservice/internal/worker"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ConvertQuery holds the raw query parameters of a conversion request.
type ConvertQuery struct {
	Amount         string `validate:"required,numeric"`
	InputCurrency  string `validate:"required,max=8"`
	OutputCurrency string `validate:"max=512"`
}

// RefreshEnqueuer enqueues a forced rate refresh.
type RefreshEnqueuer interface {
	EnqueueRefresh(ctx context.Context) (string, error)
}

// RefreshResponse represents the response for a refresh request
type RefreshResponse struct {
	TaskID string `json:"task_id" example:"0f7c3a52-5e7d-4b1f-9d0e-2f8f3b7a1c44"`
}

// ReadyResponse represents the readiness response
type ReadyResponse struct {
	Status string `json:"status" example:"ready"`
}

// HandleConvert godoc
// @Summary Convert an amount between currencies
// @Description Converts amount from input_currency into output_currency, or into every known currency when output_currency is omitted. Currencies may be ISO codes or symbols. Failures use the same envelope with a single "error" key in output.
// @Tags conversion
// @Produce json
// @Param amount query number true "Amount to convert" example(100)
// @Param input_currency query string true "Source currency (ISO code or symbol)" example(EUR)
// @Param output_currency query string false "Comma separated target currencies (ISO codes or symbols)" example(USD,GBP)
// @Success 200 {object} service.Envelope "Converted amounts"
// @Failure 400 {object} service.Envelope "Invalid amount or currency"
// @Failure 503 {object} service.Envelope "No rate provider reachable"
// @Failure 500 {object} service.Envelope "Internal error"
// @Router /convert [get]
func HandleConvert(svc service.ConverterInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		q := ConvertQuery{
			Amount:         strings.TrimSpace(query.Get("amount")),
			InputCurrency:  strings.TrimSpace(query.Get("input_currency")),
			OutputCurrency: query.Get("output_currency"),
		}
		source := service.NormalizeCurrency(q.InputCurrency)

		var amount *float64
		if v, err := strconv.ParseFloat(q.Amount, 64); err == nil {
			amount = &v
		}

		if err := validate.Struct(q); err != nil {
			writeJSON(w, http.StatusBadRequest, service.NewErrorEnvelope(amount, source, queryError(err)))
			return
		}
		if amount == nil {
			err := fmt.Errorf("%w: amount is out of range", service.ErrInvalidAmount)
			writeJSON(w, http.StatusBadRequest, service.NewErrorEnvelope(nil, source, err))
			return
		}

		req, err := service.NewConversionRequest(*amount, source, service.NormalizeCurrencyList(q.OutputCurrency)...)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, service.NewErrorEnvelope(amount, source, err))
			return
		}

		res, err := svc.Convert(r.Context(), req)
		if err != nil {
			writeJSON(w, statusFor(err), service.NewErrorEnvelope(amount, source, err))
			return
		}

		writeJSON(w, http.StatusOK, service.NewEnvelope(res))
	}
}

// queryError maps the first failed validation onto the service error taxonomy.
func queryError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %w", service.ErrInternal, err)
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Amount":
		return fmt.Errorf("%w: amount must be numeric", service.ErrInvalidAmount)
	case "InputCurrency":
		if fe.Tag() == "required" {
			return fmt.Errorf("%w: input_currency is required", service.ErrInvalidCurrency)
		}
		return fmt.Errorf("%w: input_currency is too long", service.ErrInvalidCurrency)
	default:
		return fmt.Errorf("%w: output_currency is too long", service.ErrInvalidCurrency)
	}
}

func statusFor(err error) int {
	switch {
	case service.IsInvalidInput(err):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRatesUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleRefreshRates godoc
// @Summary Request an asynchronous rate refresh
// @Description Enqueues a forced refresh of the cached rate snapshot from the primary provider. Returns immediately with the task id.
// @Tags rates
// @Produce json
// @Success 202 {object} RefreshResponse "Refresh enqueued"
// @Failure 409 {object} ErrorResponse "A refresh is already pending"
// @Failure 500 {object} ErrorResponse "Internal error"
// @Failure 503 {object} ErrorResponse "Background worker disabled"
// @Router /rates/refresh [post]
func HandleRefreshRates(enq RefreshEnqueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// nil when the background worker is disabled: nothing would process the task.
		if enq == nil {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "rate refresh worker is disabled"})
			return
		}

		taskID, err := enq.EnqueueRefresh(r.Context())
		if err != nil {
			switch {
			case errors.Is(err, worker.ErrRefreshPending):
				writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
			default:
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
			}
			return
		}

		writeJSON(w, http.StatusAccepted, RefreshResponse{TaskID: taskID})
	}
}

// HandleHealthz godoc
// @Summary Health check (liveness)
// @Description Always returns 200 OK if the service is running. Used for liveness probes.
// @Tags health
// @Produce plain
// @Success 200 {string} string "OK"
// @Router /healthz [get]
func HandleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	}
}

// HandleReadyz godoc
// @Summary Readiness check
// @Description Checks connectivity to the cache Redis and the asynq Redis. Returns 200 only when both are reachable. Rate providers are not probed.
// @Tags health
// @Produce json
// @Success 200 {object} ReadyResponse "All dependencies ready"
// @Failure 503 {object} ErrorResponse "At least one dependency unavailable"
// @Router /readyz [get]
func HandleReadyz(cache, asynqRedis *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cache != nil {
			if err := cache.Ping(r.Context()).Err(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Cache not ready"})
				return
			}
		}

		if asynqRedis != nil {
			if err := asynqRedis.Ping(r.Context()).Err(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Asynq Redis not ready"})
				return
			}
		}

		writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready"})
	}
}

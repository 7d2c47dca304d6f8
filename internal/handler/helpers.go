package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
	"github.com/mfcastro/cobranca-assistant-go/internal/service"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// asOf resolves the statement reference instant: the as_of query parameter
// when present, otherwise the billing service's evaluation clock.
func asOf(r *http.Request, billing *service.Billing) (time.Time, error) {
	if v := r.URL.Query().Get("as_of"); v != "" {
		return service.ParseCivilDate(v, billing.Contract().Location)
	}
	return billing.Now(), nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var validation *domain.ErrValidation
	var invalidInstant *domain.ErrInvalidInstant
	var notFound *domain.ErrNotFound
	var unknownSender *domain.ErrUnknownSender
	var circuitOpen *domain.ErrCircuitOpen
	var external *domain.ErrExternalService
	var configuration *domain.ErrConfiguration
	var calendarMissing *domain.ErrCalendarDataMissing

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &invalidInstant):
		logger.Debug("invalid instant", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &unknownSender):
		logger.Warn("unknown sender", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &configuration), errors.As(err, &calendarMissing):
		logger.Error("configuration error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// ============================================================
// Wire conversions
// ============================================================

const civilDate = "2006-01-02"

func toInstallmentResponse(inst domain.Installment) domain.InstallmentResponse {
	return domain.InstallmentResponse{
		Index:   inst.Index,
		DueDate: inst.DueDate.Format(civilDate),
		Value:   inst.Value.StringFixed(2),
	}
}

func toLineResponse(line domain.StatementLine) domain.StatementLineResponse {
	return domain.StatementLineResponse{
		Index:          line.Installment.Index,
		DueDate:        line.Installment.DueDate.Format(civilDate),
		Value:          line.Installment.Value.StringFixed(2),
		Status:         string(line.Status),
		DaysOverdue:    line.DaysOverdue,
		PenaltyAmount:  line.PenaltyAmount.StringFixed(2),
		InterestAmount: line.InterestAmount.StringFixed(2),
		TotalOwed:      line.TotalOwed.StringFixed(2),
	}
}

func toStatementResponse(st *domain.Statement) domain.StatementResponse {
	lines := make([]domain.StatementLineResponse, 0, len(st.Lines))
	for _, line := range st.Lines {
		lines = append(lines, toLineResponse(line))
	}
	return domain.StatementResponse{
		ReferenceDate:     st.ReferenceDate.Format(civilDate),
		Installments:      lines,
		TotalDebtOriginal: st.TotalDebtOriginal.StringFixed(2),
		TotalOwedNow:      st.TotalOwedNow.StringFixed(2),
		NextDueIndex:      st.NextDueIndex,
	}
}

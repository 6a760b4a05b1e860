package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	paymentgroupservice "courtpay/contexts/settlement-core/payment-group-service"
	grouperrors "courtpay/contexts/settlement-core/payment-group-service/domain/errors"
	grouphttp "courtpay/contexts/settlement-core/payment-group-service/transport/http"
	settlementservice "courtpay/contexts/settlement-core/settlement-service"
	settlementerrors "courtpay/contexts/settlement-core/settlement-service/domain/errors"
	settlementhttp "courtpay/contexts/settlement-core/settlement-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "courtpay/internal/platform/httpserver/docs"
)

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	groups     paymentgroupservice.Module
	settlement settlementservice.Module
}

func New(
	groups paymentgroupservice.Module,
	settlement settlementservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		groups:     groups,
		settlement: settlement,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /payment-groups", s.handleCreateGroup)
	s.mux.HandleFunc("GET /payment-groups/{group_reference}", s.handleGetGroup)
	s.mux.HandleFunc("PUT /payment-groups/{group_reference}/fees", s.handleAppendFee)
	s.mux.HandleFunc("POST /payment-groups/{group_reference}/remissions", s.handleCreateRemission)
	s.mux.HandleFunc("GET /remissions/{remission_reference}", s.handleGetRemission)

	s.mux.HandleFunc("POST /service-request/{group_reference}/pba-payments", s.handleSubmitPBAPayment)
	s.mux.HandleFunc("POST /service-request/{group_reference}/card-payments", s.handleCreateCardPayment)
	s.mux.HandleFunc("GET /payments/{payment_reference}", s.handleGetPayment)
	s.mux.HandleFunc("POST /payments/{payment_reference}/status-refresh", s.handleRefreshPaymentStatus)
	s.mux.HandleFunc("POST /payments/{payment_reference}/cancel", s.handleCancelPayment)
	s.mux.HandleFunc("GET /payments/{payment_reference}/apportions", s.handleListAllocations)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req grouphttp.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGroupError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.groups.Handler.CreateGroupHandler(r.Context(), req)
	if err != nil {
		writeGroupDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	resp, err := s.groups.Handler.GetGroupHandler(r.Context(), r.PathValue("group_reference"))
	if err != nil {
		writeGroupDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAppendFee(w http.ResponseWriter, r *http.Request) {
	var req grouphttp.FeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGroupError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.groups.Handler.AppendFeeHandler(r.Context(), r.PathValue("group_reference"), req)
	if err != nil {
		writeGroupDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateRemission(w http.ResponseWriter, r *http.Request) {
	var req grouphttp.CreateRemissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGroupError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.groups.Handler.CreateRemissionHandler(r.Context(), r.PathValue("group_reference"), req)
	if err != nil {
		writeGroupDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetRemission(w http.ResponseWriter, r *http.Request) {
	resp, err := s.groups.Handler.GetRemissionHandler(r.Context(), r.PathValue("remission_reference"))
	if err != nil {
		writeGroupDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitPBAPayment(w http.ResponseWriter, r *http.Request) {
	var req settlementhttp.PBAPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSettlementError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.settlement.Handler.SubmitPBAPaymentHandler(
		r.Context(),
		r.PathValue("group_reference"),
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, statusForOutcome(resp), resp)
}

func (s *Server) handleCreateCardPayment(w http.ResponseWriter, r *http.Request) {
	var req settlementhttp.CardPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSettlementError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.settlement.Handler.CreateCardPaymentHandler(r.Context(), r.PathValue("group_reference"), req)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	resp, err := s.settlement.Handler.GetPaymentHandler(r.Context(), r.PathValue("payment_reference"))
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefreshPaymentStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.settlement.Handler.RefreshPaymentStatusHandler(r.Context(), r.PathValue("payment_reference"))
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelPayment(w http.ResponseWriter, r *http.Request) {
	resp, err := s.settlement.Handler.CancelPaymentHandler(r.Context(), r.PathValue("payment_reference"))
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	resp, err := s.settlement.Handler.ListAllocationsHandler(r.Context(), r.PathValue("payment_reference"))
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusForOutcome maps a recorded submission outcome to the HTTP status a
// replay must repeat verbatim.
func statusForOutcome(resp settlementhttp.PBAPaymentResponse) int {
	switch resp.Data.ErrorCode {
	case "CA-E0001":
		return http.StatusPaymentRequired
	case "CA-E0003":
		return http.StatusPreconditionFailed
	case "CA-E0004":
		return http.StatusGone
	}
	return http.StatusCreated
}

func writeGroupDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, grouperrors.ErrGroupNotFound),
		errors.Is(err, grouperrors.ErrFeeNotFound),
		errors.Is(err, grouperrors.ErrRemissionNotFound):
		writeGroupError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, grouperrors.ErrInvalidGroupInput),
		errors.Is(err, grouperrors.ErrMissingCaseIdentifiers):
		writeGroupError(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
	case errors.Is(err, grouperrors.ErrDuplicateFeeCode):
		writeGroupError(w, http.StatusConflict, "duplicate_fee_code", err.Error())
	case errors.Is(err, grouperrors.ErrInvalidWaiverAmount):
		writeGroupError(w, http.StatusUnprocessableEntity, "invalid_waiver_amount", err.Error())
	case errors.Is(err, grouperrors.ErrNoServiceFound):
		writeGroupError(w, http.StatusNotFound, "no_service_found", err.Error())
	case errors.Is(err, grouperrors.ErrGatewayTimeout):
		writeGroupError(w, http.StatusGatewayTimeout, "gateway_timeout", err.Error())
	default:
		writeGroupError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeSettlementDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settlementerrors.ErrInvalidPaymentInput),
		errors.Is(err, settlementerrors.ErrIdempotencyKeyMissing):
		writeSettlementError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, settlementerrors.ErrIdempotencyConflict):
		writeSettlementError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, settlementerrors.ErrTryAgain):
		writeSettlementError(w, http.StatusConflict, "try_again", err.Error())
	case errors.Is(err, settlementerrors.ErrServiceRequestNotFound),
		errors.Is(err, settlementerrors.ErrPaymentNotFound),
		errors.Is(err, settlementerrors.ErrGatewayNotFound):
		writeSettlementError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, settlementerrors.ErrServiceRequestAlreadyPaid):
		writeSettlementError(w, http.StatusPreconditionFailed, "already_paid", err.Error())
	case errors.Is(err, settlementerrors.ErrAmountMismatch):
		writeSettlementError(w, http.StatusExpectationFailed, "amount_mismatch", err.Error())
	case errors.Is(err, settlementerrors.ErrAccountNotFound):
		writeSettlementError(w, http.StatusNotFound, "account_not_found", err.Error())
	case errors.Is(err, settlementerrors.ErrInvalidStatusTransition):
		writeSettlementError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, settlementerrors.ErrCancelDisabled):
		writeSettlementError(w, http.StatusNotImplemented, "cancel_disabled", err.Error())
	case errors.Is(err, settlementerrors.ErrGatewayTimeout):
		writeSettlementError(w, http.StatusGatewayTimeout, "gateway_timeout", err.Error())
	case errors.Is(err, settlementerrors.ErrGatewayUnavailable):
		writeSettlementError(w, http.StatusBadGateway, "gateway_unavailable", err.Error())
	default:
		writeSettlementError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeGroupError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, grouphttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeSettlementError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, settlementhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

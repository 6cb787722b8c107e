package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nvinayak/pharmanet/internal/core/service"
	"github.com/nvinayak/pharmanet/internal/port"
)

// callerHeader carries the verified organisation identifier. The identity
// provider in front of this service authenticates the caller and sets it;
// the core never sees credentials.
const callerHeader = "X-Org-ID"

var transactionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pharmanet",
		Name:      "transactions_total",
		Help:      "Transactions processed, by function and outcome.",
	},
	[]string{"transaction", "outcome"},
)

func init() {
	prometheus.MustRegister(transactionsTotal)
}

type HTTPHandler struct {
	svc   *service.PharmaService
	cache port.CacheRepository
}

func NewHTTPHandler(svc *service.PharmaService, cache port.CacheRepository) *HTTPHandler {
	return &HTTPHandler{svc: svc, cache: cache}
}

// Register mounts every route on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/companies", h.RegisterCompany)
	mux.HandleFunc("/api/drugs", h.AddDrug)
	mux.HandleFunc("/api/purchase-orders", h.CreatePO)
	mux.HandleFunc("/api/shipments", h.CreateShipment)
	mux.HandleFunc("/api/shipments/delivery", h.UpdateShipment)
	mux.HandleFunc("/api/drugs/retail", h.RetailDrug)
	mux.HandleFunc("/api/drugs/history", h.ViewHistory)
	mux.HandleFunc("/api/drugs/state", h.ViewDrugCurrentState)
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type registerCompanyRequest struct {
	RequestID string `json:"request_id"`
	CRN       string `json:"crn"`
	Name      string `json:"name"`
	Location  string `json:"location"`
	Role      string `json:"role"`
}

type addDrugRequest struct {
	RequestID  string `json:"request_id"`
	Name       string `json:"name"`
	SerialNo   string `json:"serial_no"`
	MfgDate    string `json:"mfg_date"`
	ExpDate    string `json:"exp_date"`
	CompanyCRN string `json:"company_crn"`
}

type createPORequest struct {
	RequestID string `json:"request_id"`
	BuyerCRN  string `json:"buyer_crn"`
	SellerCRN string `json:"seller_crn"`
	DrugName  string `json:"drug_name"`
	Quantity  int    `json:"quantity"`
}

type createShipmentRequest struct {
	RequestID      string   `json:"request_id"`
	BuyerCRN       string   `json:"buyer_crn"`
	DrugName       string   `json:"drug_name"`
	AssetSerials   []string `json:"asset_serials"`
	TransporterCRN string   `json:"transporter_crn"`
}

type updateShipmentRequest struct {
	RequestID      string `json:"request_id"`
	BuyerCRN       string `json:"buyer_crn"`
	DrugName       string `json:"drug_name"`
	TransporterCRN string `json:"transporter_crn"`
}

type retailDrugRequest struct {
	RequestID      string `json:"request_id"`
	DrugName       string `json:"drug_name"`
	SerialNo       string `json:"serial_no"`
	RetailerCRN    string `json:"retailer_crn"`
	CustomerAadhar string `json:"customer_aadhar"`
}

func (h *HTTPHandler) RegisterCompany(w http.ResponseWriter, r *http.Request) {
	var req registerCompanyRequest
	caller, ok := h.beginWrite(w, r, &req)
	if !ok {
		return
	}
	if req.CRN == "" || req.Name == "" || req.Role == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "missing required fields"})
		return
	}
	if !h.claimRequest(w, r, req.RequestID) {
		return
	}

	company, err := h.svc.RegisterCompany(r.Context(), caller, req.CRN, req.Name, req.Location, req.Role)
	h.finish(w, "registerCompany", company, err)
}

func (h *HTTPHandler) AddDrug(w http.ResponseWriter, r *http.Request) {
	var req addDrugRequest
	caller, ok := h.beginWrite(w, r, &req)
	if !ok {
		return
	}
	if req.Name == "" || req.SerialNo == "" || req.CompanyCRN == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "missing required fields"})
		return
	}
	if !h.claimRequest(w, r, req.RequestID) {
		return
	}

	drug, err := h.svc.AddDrug(r.Context(), caller, req.Name, req.SerialNo, req.MfgDate, req.ExpDate, req.CompanyCRN)
	h.finish(w, "addDrug", drug, err)
}

func (h *HTTPHandler) CreatePO(w http.ResponseWriter, r *http.Request) {
	var req createPORequest
	caller, ok := h.beginWrite(w, r, &req)
	if !ok {
		return
	}
	if req.BuyerCRN == "" || req.SellerCRN == "" || req.DrugName == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "missing required fields"})
		return
	}
	if !h.claimRequest(w, r, req.RequestID) {
		return
	}

	po, err := h.svc.CreatePO(r.Context(), caller, req.BuyerCRN, req.SellerCRN, req.DrugName, req.Quantity)
	h.finish(w, "createPO", po, err)
}

func (h *HTTPHandler) CreateShipment(w http.ResponseWriter, r *http.Request) {
	var req createShipmentRequest
	caller, ok := h.beginWrite(w, r, &req)
	if !ok {
		return
	}
	if req.BuyerCRN == "" || req.DrugName == "" || req.TransporterCRN == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "missing required fields"})
		return
	}
	if !h.claimRequest(w, r, req.RequestID) {
		return
	}

	shipment, err := h.svc.CreateShipment(r.Context(), caller, req.BuyerCRN, req.DrugName, req.AssetSerials, req.TransporterCRN)
	h.finish(w, "createShipment", shipment, err)
}

func (h *HTTPHandler) UpdateShipment(w http.ResponseWriter, r *http.Request) {
	var req updateShipmentRequest
	caller, ok := h.beginWrite(w, r, &req)
	if !ok {
		return
	}
	if req.BuyerCRN == "" || req.DrugName == "" || req.TransporterCRN == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "missing required fields"})
		return
	}
	if !h.claimRequest(w, r, req.RequestID) {
		return
	}

	drugs, err := h.svc.UpdateShipment(r.Context(), caller, req.BuyerCRN, req.DrugName, req.TransporterCRN)
	h.finish(w, "updateShipment", drugs, err)
}

func (h *HTTPHandler) RetailDrug(w http.ResponseWriter, r *http.Request) {
	var req retailDrugRequest
	caller, ok := h.beginWrite(w, r, &req)
	if !ok {
		return
	}
	if req.DrugName == "" || req.SerialNo == "" || req.RetailerCRN == "" || req.CustomerAadhar == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "missing required fields"})
		return
	}
	if !h.claimRequest(w, r, req.RequestID) {
		return
	}

	drug, err := h.svc.RetailDrug(r.Context(), caller, req.DrugName, req.SerialNo, req.RetailerCRN, req.CustomerAadhar)
	h.finish(w, "retailDrug", drug, err)
}

func (h *HTTPHandler) ViewHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name, serial := r.URL.Query().Get("name"), r.URL.Query().Get("serial")
	if name == "" || serial == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "name and serial query parameters are required"})
		return
	}

	history, err := h.svc.ViewHistory(r.Context(), name, serial)
	h.finish(w, "viewHistory", history, err)
}

func (h *HTTPHandler) ViewDrugCurrentState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name, serial := r.URL.Query().Get("name"), r.URL.Query().Get("serial")
	if name == "" || serial == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "name and serial query parameters are required"})
		return
	}

	drug, err := h.svc.ViewDrugCurrentState(r.Context(), name, serial)
	h.finish(w, "viewDrugCurrentState", drug, err)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// beginWrite handles the boilerplate shared by every write endpoint:
// method check, caller header, body decoding.
func (h *HTTPHandler) beginWrite(w http.ResponseWriter, r *http.Request, req any) (string, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	caller := r.Header.Get(callerHeader)
	if caller == "" {
		writeJSON(w, http.StatusUnauthorized, apiResponse{Message: "missing " + callerHeader + " header"})
		return "", false
	}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "invalid request body"})
		return "", false
	}
	return caller, true
}

// claimRequest enforces request-id idempotency when the caller supplies one.
func (h *HTTPHandler) claimRequest(w http.ResponseWriter, r *http.Request, requestID string) bool {
	if requestID == "" {
		return true
	}
	ok, err := h.cache.SetIdempotency(r.Context(), requestID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiResponse{Message: "internal error"})
		return false
	}
	if !ok {
		writeJSON(w, http.StatusConflict, apiResponse{Message: "duplicate request"})
		return false
	}
	return true
}

func (h *HTTPHandler) finish(w http.ResponseWriter, transaction string, data any, err error) {
	transactionsTotal.WithLabelValues(transaction, outcomeLabel(err)).Inc()

	if err != nil {
		status, message := statusForError(err)
		writeJSON(w, status, apiResponse{Message: message})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrState):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, service.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, service.ErrNotFound):
		return "not_found"
	case errors.Is(err, service.ErrValidation):
		return "validation"
	case errors.Is(err, service.ErrState):
		return "state"
	default:
		return "error"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

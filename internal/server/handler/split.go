package handler

import (
	"net/http"

	"github.com/shijin-alpha/buildhub-main-sub011/internal/middleware"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/models"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/service"
)

// SplitHandler serves the split-payment endpoints.
type SplitHandler struct {
	svc *service.SplitService
}

// NewSplitHandler creates a SplitHandler on the given service.
func NewSplitHandler(svc *service.SplitService) *SplitHandler {
	return &SplitHandler{svc: svc}
}

type createPlanRequest struct {
	PayableType string  `json:"payable_type"`
	PayableRef  string  `json:"payable_ref"`
	PayeeID     string  `json:"payee_id"`
	TotalAmount float64 `json:"total_amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

type confirmRequest struct {
	GatewayOrderID    string `json:"gateway_order_id"`
	GatewayPaymentRef string `json:"gateway_payment_ref"`
	GatewaySignature  string `json:"gateway_signature"`
}

type groupResponse struct {
	ID                    string  `json:"id"`
	PayableType           string  `json:"payable_type"`
	PayableRef            string  `json:"payable_ref"`
	PayeeID               string  `json:"payee_id,omitempty"`
	TotalAmount           float64 `json:"total_amount"`
	Currency              string  `json:"currency"`
	TotalInstallments     int     `json:"total_installments"`
	CompletedInstallments int     `json:"completed_installments"`
	CompletedAmount       float64 `json:"completed_amount"`
	Status                string  `json:"status"`
	Description           string  `json:"description,omitempty"`
	CreatedAt             int64   `json:"created_at"`
	UpdatedAt             int64   `json:"updated_at"`
}

type installmentResponse struct {
	Sequence       int     `json:"sequence"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	Description    string  `json:"description,omitempty"`
	Status         string  `json:"status"`
	GatewayOrderID string  `json:"gateway_order_id,omitempty"`
	FailureReason  string  `json:"failure_reason,omitempty"`
}

type groupDetailResponse struct {
	Group        groupResponse         `json:"group"`
	Installments []installmentResponse `json:"installments"`
}

type orderResponse struct {
	GatewayOrderID string  `json:"gateway_order_id"`
	Sequence       int     `json:"sequence"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
}

type progressResponse struct {
	GroupID               string   `json:"group_id"`
	ProgressPercentage    float64  `json:"progress_percentage"`
	CompletedInstallments int      `json:"completed_installments"`
	TotalInstallments     int      `json:"total_installments"`
	CompletedAmount       float64  `json:"completed_amount"`
	TotalAmount           float64  `json:"total_amount"`
	NextInstallmentAmount *float64 `json:"next_installment_amount,omitempty"`
}

type confirmResponse struct {
	AlreadyCompleted bool             `json:"already_completed"`
	GroupStatus      string           `json:"group_status"`
	Progress         progressResponse `json:"progress"`
}

// CreatePlan computes and persists a split plan for a payable.
// POST /api/splits
func (h *SplitHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payableType, err := models.ParsePayableType(req.PayableType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.svc.CreateSplitPlan(r.Context(), middleware.GetUserID(r.Context()), service.CreatePlanInput{
		PayableType: payableType,
		PayableRef:  req.PayableRef,
		PayeeID:     req.PayeeID,
		TotalAmount: req.TotalAmount,
		Currency:    req.Currency,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupDetail(detail))
}

// GetGroup returns a split group with all of its installments.
// GET /api/splits/{id}
func (h *SplitHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetGroupDetail(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupDetail(detail))
}

// GetProgress returns the group's progress snapshot.
// GET /api/splits/{id}/progress
func (h *SplitHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.svc.GetProgress(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgress(progress))
}

// RequestOrder opens a gateway order for the next payable installment.
// POST /api/splits/{id}/installments/{seq}/order
func (h *SplitHandler) RequestOrder(w http.ResponseWriter, r *http.Request) {
	seq, ok := pathSequence(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid installment sequence")
		return
	}

	order, err := h.svc.RequestInstallmentOrder(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"), seq)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderResponse{
		GatewayOrderID: order.GatewayOrderID,
		Sequence:       order.Sequence,
		Amount:         order.Amount,
		Currency:       order.Currency,
	})
}

// Confirm verifies a payment confirmation and applies it to the ledger.
// POST /api/splits/{id}/installments/{seq}/confirm
func (h *SplitHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	seq, ok := pathSequence(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid installment sequence")
		return
	}

	var req confirmRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GatewayOrderID == "" || req.GatewayPaymentRef == "" || req.GatewaySignature == "" {
		writeError(w, http.StatusBadRequest, "gateway_order_id, gateway_payment_ref and gateway_signature are required")
		return
	}

	result, err := h.svc.ConfirmInstallment(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"), seq, service.ConfirmInput{
		GatewayOrderID:    req.GatewayOrderID,
		GatewayPaymentRef: req.GatewayPaymentRef,
		GatewaySignature:  req.GatewaySignature,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmResponse{
		AlreadyCompleted: result.AlreadyCompleted,
		GroupStatus:      string(result.GroupStatus),
		Progress:         toProgress(result.Progress),
	})
}

// Cancel stops collection on an incomplete group.
// POST /api/splits/{id}/cancel
func (h *SplitHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CancelGroup(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(models.GroupCancelled)})
}

func toGroupDetail(detail *service.GroupDetail) groupDetailResponse {
	resp := groupDetailResponse{
		Group: groupResponse{
			ID:                    detail.Group.ID,
			PayableType:           string(detail.Group.PayableType),
			PayableRef:            detail.Group.PayableRef,
			PayeeID:               detail.Group.PayeeID,
			TotalAmount:           detail.Group.TotalAmount,
			Currency:              detail.Group.Currency,
			TotalInstallments:     detail.Group.TotalInstallments,
			CompletedInstallments: detail.Group.CompletedInstallments,
			CompletedAmount:       detail.Group.CompletedAmount,
			Status:                string(detail.Group.Status),
			Description:           detail.Group.Description,
			CreatedAt:             detail.Group.CreatedAt,
			UpdatedAt:             detail.Group.UpdatedAt,
		},
		Installments: make([]installmentResponse, 0, len(detail.Installments)),
	}
	for _, inst := range detail.Installments {
		resp.Installments = append(resp.Installments, installmentResponse{
			Sequence:       inst.Sequence,
			Amount:         inst.Amount,
			Currency:       inst.Currency,
			Description:    inst.Description,
			Status:         string(inst.Status),
			GatewayOrderID: inst.GatewayOrderID,
			FailureReason:  inst.FailureReason,
		})
	}
	return resp
}

func toProgress(p *models.SplitPaymentProgress) progressResponse {
	return progressResponse{
		GroupID:               p.GroupID,
		ProgressPercentage:    p.ProgressPercentage,
		CompletedInstallments: p.CompletedInstallments,
		TotalInstallments:     p.TotalInstallments,
		CompletedAmount:       p.CompletedAmount,
		TotalAmount:           p.TotalAmount,
		NextInstallmentAmount: p.NextInstallmentAmount,
	}
}

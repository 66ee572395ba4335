package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallhaul/tradeledger/internal/audit/domain"
	customerdomain "github.com/smallhaul/tradeledger/internal/customer/domain"
	invoicedomain "github.com/smallhaul/tradeledger/internal/invoice/domain"
	paymentdomain "github.com/smallhaul/tradeledger/internal/payment/domain"
	productdomain "github.com/smallhaul/tradeledger/internal/product/domain"
	saledomain "github.com/smallhaul/tradeledger/internal/sale/domain"
	sequencedomain "github.com/smallhaul/tradeledger/internal/sequence/domain"
	truckdomain "github.com/smallhaul/tradeledger/internal/truck/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

// ErrorHandlingMiddleware turns the last gin error into the JSON error body.
// Handlers push domain errors via AbortWithError and never write status codes
// themselves for failures.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return ErrInvalidRequest
}

func mapError(err error) (int, errorPayload) {
	var transition *invoicedomain.TransitionError
	if errors.As(err, &transition) {
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    "invalid_transition",
			Message: transition.Error(),
		}
	}

	switch {
	case isValidationError(err):
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    code,
			Message: validationMessage(code),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    err.Error(),
			Message: conflictMessage(err),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Code:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, truckdomain.ErrInvalidPlateNumber),
		errors.Is(err, truckdomain.ErrInvalidID),
		errors.Is(err, productdomain.ErrInvalidName),
		errors.Is(err, productdomain.ErrInvalidUnit),
		errors.Is(err, productdomain.ErrInvalidPrice),
		errors.Is(err, productdomain.ErrInvalidID),
		errors.Is(err, customerdomain.ErrInvalidName),
		errors.Is(err, customerdomain.ErrInvalidID),
		errors.Is(err, customerdomain.ErrSelfMerge),
		errors.Is(err, saledomain.ErrInvalidTruck),
		errors.Is(err, saledomain.ErrInvalidProduct),
		errors.Is(err, saledomain.ErrInvalidCustomer),
		errors.Is(err, saledomain.ErrInvalidQuantity),
		errors.Is(err, saledomain.ErrInvalidDiscount),
		errors.Is(err, saledomain.ErrInvalidID),
		errors.Is(err, invoicedomain.ErrInvalidCustomer),
		errors.Is(err, invoicedomain.ErrInvalidSale),
		errors.Is(err, invoicedomain.ErrInvalidTaxRate),
		errors.Is(err, invoicedomain.ErrInvalidDueDays),
		errors.Is(err, invoicedomain.ErrEmptyInvoice),
		errors.Is(err, invoicedomain.ErrInvalidID),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidMethod),
		errors.Is(err, paymentdomain.ErrInvalidID),
		errors.Is(err, auditdomain.ErrInvalidAction),
		errors.Is(err, auditdomain.ErrInvalidEntityType):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, truckdomain.ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, saledomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, truckdomain.ErrDuplicatePlate),
		errors.Is(err, customerdomain.ErrAlreadyMerged),
		errors.Is(err, customerdomain.ErrInactiveTarget),
		errors.Is(err, customerdomain.ErrInactiveSource),
		errors.Is(err, invoicedomain.ErrSaleBilled),
		errors.Is(err, invoicedomain.ErrNotDraft),
		errors.Is(err, paymentdomain.ErrNotIssued),
		errors.Is(err, paymentdomain.ErrInvoiceCancelled),
		errors.Is(err, paymentdomain.ErrOverPayment),
		errors.Is(err, sequencedomain.ErrSequenceConflict):
		return true
	default:
		return false
	}
}

func validationMessage(code string) string {
	if code == "invalid_request" {
		return "invalid request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return "invalid " + strings.TrimPrefix(code, "invalid_")
	}
	return "validation error"
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, paymentdomain.ErrOverPayment):
		return "payment exceeds the open balance"
	case errors.Is(err, invoicedomain.ErrSaleBilled):
		return "sale is already on an invoice"
	case errors.Is(err, invoicedomain.ErrNotDraft):
		return "invoice is no longer a draft"
	case errors.Is(err, paymentdomain.ErrNotIssued):
		return "invoice is not issued"
	case errors.Is(err, paymentdomain.ErrInvoiceCancelled):
		return "invoice is cancelled"
	case errors.Is(err, customerdomain.ErrAlreadyMerged):
		return "customer was already merged"
	default:
		return "conflict"
	}
}

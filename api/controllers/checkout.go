package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/halcyon-wellness/storefront-api/api/responses"
	"github.com/halcyon-wellness/storefront-api/api/validators"
	"github.com/halcyon-wellness/storefront-api/internal/checkout"
	pkgerrors "github.com/halcyon-wellness/storefront-api/pkg/errors"
	"github.com/halcyon-wellness/storefront-api/pkg/logger"
)

// CheckoutBeginPayment opens a PENDING order and returns the client secret
// for the frontend payment element.
func CheckoutBeginPayment(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		var body checkout.BeginPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// a blank or malformed address id reads as no address selected
		addressID := uuid.Nil
		if raw := strings.TrimSpace(body.AddressID); raw != "" {
			if parsed, err := uuid.Parse(raw); err == nil {
				addressID = parsed
			}
		}

		result, err := svc.BeginPayment(r.Context(), userID, addressID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

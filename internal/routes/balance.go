package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/harryospicon/catarse/internal/posting"
)

// RegisterBalanceRoutes wires the posting engine endpoints. Posting routes
// react to platform lifecycle events; the read routes serve the user-facing
// balance screens.
func RegisterBalanceRoutes(r fiber.Router, h *posting.Handler, transferLimit fiber.Handler) {
	r.Post("/projects/:projectId/balance/success", h.ProjectSuccess)
	r.Post("/projects/:projectId/balance/late-confirmation", h.LateConfirmation)
	r.Post("/payments/:paymentId/balance/chargeback", h.Chargeback)
	r.Post("/contributions/:contributionId/balance/refund", h.Refund)
	r.Get("/contributions/:contributionId/balance/status", h.ContributionStatus)
	r.Post("/transactions/:transactionId/balance/expire", h.Expire)
	r.Get("/transactions/:transactionId", h.Transaction)
	r.Get("/transactions/:transactionId/can-expire", h.CanExpire)
	r.Post("/balance/sweep", h.Sweep)

	r.Get("/users/:userId/balance", h.UserBalance)
	r.Get("/users/:userId/balance/transactions", h.UserStatement)
	r.Post("/users/:userId/balance/transfer-request", transferLimit, h.TransferRequest)
}

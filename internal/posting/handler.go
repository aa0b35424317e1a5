package posting

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/harryospicon/catarse/internal/balance"
	"github.com/harryospicon/catarse/internal/contribution"
	"github.com/harryospicon/catarse/internal/payment"
	"github.com/harryospicon/catarse/internal/project"
	"github.com/harryospicon/catarse/internal/user"
)

// Handler exposes the posting engine over HTTP. Triggers respond 201 when
// transactions were written and 200 with posted:false when the call was a
// replay or a precondition was not met.
type Handler struct {
	service *Service
}

// NewHandler constructs a posting handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ProjectSuccess posts the success credit, fee and tax for a finished project.
func (h *Handler) ProjectSuccess(c *fiber.Ctx) error {
	projectID, err := parseID(c, "projectId")
	if err != nil {
		return err
	}

	res, err := h.service.PostProjectSuccess(c.UserContext(), projectID)
	if err != nil {
		return mapError(err)
	}
	return respondResult(c, res)
}

// LateConfirmation posts the credit and fee for a contribution confirmed
// after its project finished.
func (h *Handler) LateConfirmation(c *fiber.Ctx) error {
	projectID, err := parseID(c, "projectId")
	if err != nil {
		return err
	}
	var req LateConfirmationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	contributionID, err := uuid.Parse(req.ContributionID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid contribution_id")
	}

	res, err := h.service.PostLateConfirmation(c.UserContext(), projectID, contributionID)
	if err != nil {
		return mapError(err)
	}
	return respondResult(c, res)
}

// Chargeback posts the clawback for a charged-back payment.
func (h *Handler) Chargeback(c *fiber.Ctx) error {
	paymentID, err := parseID(c, "paymentId")
	if err != nil {
		return err
	}

	res, err := h.service.PostChargeback(c.UserContext(), paymentID)
	if err != nil {
		return mapError(err)
	}
	return respondResult(c, res)
}

// Refund posts a contribution refund into the contributor's balance.
func (h *Handler) Refund(c *fiber.Ctx) error {
	contributionID, err := parseID(c, "contributionId")
	if err != nil {
		return err
	}

	tx, err := h.service.PostRefund(c.UserContext(), contributionID)
	if err != nil {
		return mapError(err)
	}
	return respondOptional(c, tx)
}

// Expire reverses a refund credit past the expiry window.
func (h *Handler) Expire(c *fiber.Ctx) error {
	transactionID, err := parseID(c, "transactionId")
	if err != nil {
		return err
	}

	tx, err := h.service.PostExpiration(c.UserContext(), transactionID)
	if err != nil {
		return mapError(err)
	}
	return respondOptional(c, tx)
}

// Transaction returns a single posted transaction.
func (h *Handler) Transaction(c *fiber.Ctx) error {
	transactionID, err := parseID(c, "transactionId")
	if err != nil {
		return err
	}

	tx, err := h.service.Transaction(c.UserContext(), transactionID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toTransactionResponse(tx))
}

// ContributionStatus reports which postings a contribution has received, so
// dispatchers can tell a pending event from a completed one.
func (h *Handler) ContributionStatus(c *fiber.Ctx) error {
	contributionID, err := parseID(c, "contributionId")
	if err != nil {
		return err
	}

	refunded, err := h.service.ContributionRefunded(c.UserContext(), contributionID)
	if err != nil {
		return mapError(err)
	}
	chargedBack, err := h.service.ContributionChargedBack(c.UserContext(), contributionID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(ContributionStatusResponse{
		ContributionID: contributionID.String(),
		Refunded:       refunded,
		ChargedBack:    chargedBack,
	})
}

// CanExpire reports whether a refund credit can still be expired.
func (h *Handler) CanExpire(c *fiber.Ctx) error {
	transactionID, err := parseID(c, "transactionId")
	if err != nil {
		return err
	}

	ok, err := h.service.CanExpire(c.UserContext(), transactionID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(CanExpireResponse{
		TransactionID: transactionID.String(),
		CanExpire:     ok,
	})
}

// TransferRequest debits a withdrawal from the user's balance.
func (h *Handler) TransferRequest(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return err
	}
	var req TransferRequestBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	tx, err := h.service.PostTransferRequest(c.UserContext(), userID, req.Amount)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(PostResponse{
		Posted:       true,
		Transactions: []TransactionResponse{toTransactionResponse(*tx)},
	})
}

// Sweep runs the expiration sweep immediately.
func (h *Handler) Sweep(c *fiber.Ctx) error {
	expired, err := h.service.SweepExpirations(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(SweepResponse{
		Expired:      len(expired),
		Transactions: toTransactionResponses(expired),
	})
}

// UserBalance returns the user's summed balance.
func (h *Handler) UserBalance(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return err
	}

	summary, err := h.service.UserBalance(c.UserContext(), userID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(BalanceResponse{
		UserID: summary.UserID.String(),
		Amount: summary.Amount,
		AsOf:   summary.AsOf,
	})
}

// UserStatement returns the user's transactions, most recent first.
func (h *Handler) UserStatement(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return err
	}

	txs, err := h.service.UserStatement(c.UserContext(), userID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(StatementResponse{
		UserID:       userID.String(),
		Transactions: toTransactionResponses(txs),
	})
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, fiber.NewError(http.StatusBadRequest, "invalid "+param)
	}
	return id, nil
}

func respondResult(c *fiber.Ctx, res PostResult) error {
	if !res.Posted {
		return c.Status(http.StatusOK).JSON(PostResponse{Posted: false})
	}
	return c.Status(http.StatusCreated).JSON(PostResponse{
		Posted:       true,
		Transactions: toTransactionResponses(res.Transactions),
	})
}

func respondOptional(c *fiber.Ctx, tx *balance.Transaction) error {
	if tx == nil {
		return c.Status(http.StatusOK).JSON(PostResponse{Posted: false})
	}
	return c.Status(http.StatusCreated).JSON(PostResponse{
		Posted:       true,
		Transactions: []TransactionResponse{toTransactionResponse(*tx)},
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, project.ErrNotFound),
		errors.Is(err, contribution.ErrNotFound),
		errors.Is(err, payment.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, balance.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrProjectMismatch),
		errors.Is(err, balance.ErrInvalidTransaction),
		errors.Is(err, balance.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

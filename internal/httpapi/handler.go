package httpapi

import (
	"errors"
	"net/http"

	"courseshop-be/internal/access"
	"courseshop-be/internal/course"
	"courseshop-be/internal/logger"
	"courseshop-be/internal/mapper"
	"courseshop-be/internal/metrics"
	"courseshop-be/internal/order"
	"courseshop-be/internal/payment/webhook"
	"courseshop-be/internal/user"
	"courseshop-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Courses   course.Repository
	Users     user.Repository
	Orders    order.Service
	Purchases access.PurchaseChecker
	Webhook   *webhook.Handler
	Stats     *metrics.Payments
}

func NewHandler(
	courses course.Repository,
	users user.Repository,
	orders order.Service,
	purchases access.PurchaseChecker,
	wh *webhook.Handler,
) *Handler {
	stats := wh.Stats
	if stats == nil {
		stats = &metrics.Payments{}
		wh.Stats = stats
	}
	return &Handler{
		Courses:   courses,
		Users:     users,
		Orders:    orders,
		Purchases: purchases,
		Webhook:   wh,
		Stats:     stats,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"payments": h.Stats.Snapshot(),
	})
}

// courseSearchLimit caps the quick search results.
const courseSearchLimit = 5

// ListCourses lists the catalog, or searches it when query is set.
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	var (
		courses []course.Course
		err     error
	)
	if query, ok := r.URL.Query()["query"]; ok {
		courses, err = h.Courses.Search(r.Context(), query[0], courseSearchLimit)
	} else {
		courses, err = h.Courses.List(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.MapCoursesToView(courses))
}

func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	courseID, ok := utils.ParseID(chi.URLParam(r, "courseID"))
	if !ok {
		utils.WriteJSONError(w, "invalid course id", http.StatusBadRequest)
		return
	}

	c, err := h.Courses.GetByID(r.Context(), courseID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.MapCourseToView(c))
}

// GetCourseBlocks serves course content to owners only.
func (h *Handler) GetCourseBlocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, decision := access.RequireUser(ctx)
	if !decision.Allowed {
		utils.WriteJSONError(w, decision.Reason, http.StatusUnauthorized)
		return
	}

	courseID, ok := utils.ParseID(chi.URLParam(r, "courseID"))
	if !ok {
		utils.WriteJSONError(w, "invalid course id", http.StatusBadRequest)
		return
	}

	c, err := h.Courses.GetByID(ctx, courseID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if decision := access.RequirePurchase(ctx, h.Purchases, userID, c.ID); !decision.Allowed {
		utils.WriteJSONError(w, decision.Reason, http.StatusForbidden)
		return
	}

	blocks, err := h.Courses.ListBlocks(ctx, c.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, mapper.CourseBlocks{
		Course: mapper.MapCourseToView(c),
		Blocks: mapper.MapBlocksToView(blocks),
	})
}

// contentRequest is the owner-gated part of a content route.
type contentRequest struct {
	courseID   int64
	blockID    int64
	subBlockID *int64
}

// authorizeContent parses a content route and checks that the caller owns the
// course. It writes the error response itself and reports false on failure.
func (h *Handler) authorizeContent(w http.ResponseWriter, r *http.Request) (contentRequest, bool) {
	ctx := r.Context()

	userID, decision := access.RequireUser(ctx)
	if !decision.Allowed {
		utils.WriteJSONError(w, decision.Reason, http.StatusUnauthorized)
		return contentRequest{}, false
	}

	var req contentRequest
	var ok bool
	if req.courseID, ok = utils.ParseID(chi.URLParam(r, "courseID")); !ok {
		utils.WriteJSONError(w, "invalid course id", http.StatusBadRequest)
		return req, false
	}
	if req.blockID, ok = utils.ParseID(chi.URLParam(r, "blockID")); !ok {
		utils.WriteJSONError(w, "invalid block id", http.StatusBadRequest)
		return req, false
	}
	if raw := chi.URLParam(r, "subBlockID"); raw != "" {
		id, ok := utils.ParseID(raw)
		if !ok {
			utils.WriteJSONError(w, "invalid sub-block id", http.StatusBadRequest)
			return req, false
		}
		req.subBlockID = &id
	}

	c, err := h.Courses.GetByID(ctx, req.courseID)
	if err != nil {
		h.writeError(w, r, err)
		return req, false
	}
	if decision := access.RequirePurchase(ctx, h.Purchases, userID, c.ID); !decision.Allowed {
		utils.WriteJSONError(w, decision.Reason, http.StatusForbidden)
		return req, false
	}
	return req, true
}

// GetContent restores the reading list up to a block or sub-block.
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	req, ok := h.authorizeContent(w, r)
	if !ok {
		return
	}

	contents, err := h.Courses.ContentUpTo(r.Context(), req.courseID, req.blockID, req.subBlockID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK,
		mapper.MapContentListToView(req.courseID, req.blockID, req.subBlockID, contents))
}

// NextContent returns the step after a block or sub-block, or 204 at the end
// of the course.
func (h *Handler) NextContent(w http.ResponseWriter, r *http.Request) {
	req, ok := h.authorizeContent(w, r)
	if !ok {
		return
	}

	next, err := h.Courses.NextContent(r.Context(), req.courseID, req.blockID, req.subBlockID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if next == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.MapContentToView(req.courseID, next))
}

// Checkout renders the confirmation form on GET and starts a payment on POST.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, decision := access.RequireUser(ctx)
	if !decision.Allowed {
		utils.WriteJSONError(w, decision.Reason, http.StatusUnauthorized)
		return
	}

	courseID, ok := utils.ParseID(chi.URLParam(r, "courseID"))
	if !ok {
		utils.WriteJSONError(w, "invalid course id", http.StatusBadRequest)
		return
	}

	buyer := h.buyer(r, userID)

	var (
		res *order.CheckoutResult
		err error
	)
	if r.Method == http.MethodPost {
		res, err = h.Orders.Checkout(ctx, buyer, courseID)
	} else {
		res, err = h.Orders.CheckoutForm(ctx, buyer, courseID)
	}

	if errors.Is(err, order.ErrPaymentUnavailable) && res != nil && res.Form != nil {
		h.Stats.CheckoutFailed.Inc()
		utils.WriteJSON(w, http.StatusOK, mapper.MapCheckoutFormToView(res.Form))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if res.IsRedirect() {
		if r.Method == http.MethodPost && !res.AlreadyPurchased {
			h.Stats.CheckoutRedirected.Inc()
		}
		http.Redirect(w, r, res.RedirectURL, http.StatusFound)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.MapCheckoutFormToView(res.Form))
}

// PaymentReturn serves both gateway return pages. The outcome always comes
// from the order and the gateway, never from which URL was hit.
func (h *Handler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, decision := access.RequireUser(ctx)
	if !decision.Allowed {
		utils.WriteJSONError(w, decision.Reason, http.StatusUnauthorized)
		return
	}

	orderID, ok := utils.ParseID(r.URL.Query().Get("order_id"))
	if !ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	view, err := h.Orders.CheckStatus(ctx, userID, orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.MapStatusToView(view))
}

// buyer prefers the token email and falls back to the account row, which the
// receipt needs.
func (h *Handler) buyer(r *http.Request, userID int64) order.Buyer {
	b := order.Buyer{UserID: userID, Email: utils.GetUserEmailFromContext(r.Context())}
	if b.Email != "" || h.Users == nil {
		return b
	}

	u, err := h.Users.GetByID(r.Context(), userID)
	if err != nil {
		logger.FromCtx(r.Context()).Warn("buyer email lookup failed",
			zap.Int64("user_id", userID), zap.Error(err))
		return b
	}
	b.Email = u.Email
	return b
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, course.ErrCourseNotFound):
		utils.WriteJSONError(w, "course not found", http.StatusNotFound)
	case errors.Is(err, course.ErrContentNotFound):
		utils.WriteJSONError(w, "content not found", http.StatusNotFound)
	case errors.Is(err, order.ErrOrderNotFound):
		utils.WriteJSONError(w, "order not found", http.StatusNotFound)
	default:
		logger.FromCtx(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		utils.WriteJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

package access

import (
	"context"

	"courseshop-be/internal/logger"
	"courseshop-be/internal/utils"

	"go.uber.org/zap"
)

const (
	ReasonLoginRequired    = "login required"
	ReasonPurchaseRequired = "course purchase required"
	ReasonUnavailable      = "purchase status unavailable"
)

// Decision is the result of an access guard. Denied decisions carry a reason
// fit for showing to the caller.
type Decision struct {
	Allowed bool
	Reason  string
}

func Allow() Decision { return Decision{Allowed: true} }

func Deny(reason string) Decision { return Decision{Reason: reason} }

// PurchaseChecker answers whether a user owns a course.
type PurchaseChecker interface {
	IsPurchased(ctx context.Context, userID, courseID int64) (bool, error)
}

// RequireUser allows any authenticated caller.
func RequireUser(ctx context.Context) (int64, Decision) {
	userID, ok := utils.GetUserIDFromContext(ctx)
	if !ok {
		return 0, Deny(ReasonLoginRequired)
	}
	return userID, Allow()
}

// RequirePurchase allows the user only when the course is purchased. The
// answer may be stale by up to the purchase cache TTL.
func RequirePurchase(ctx context.Context, checker PurchaseChecker, userID, courseID int64) Decision {
	purchased, err := checker.IsPurchased(ctx, userID, courseID)
	if err != nil {
		logger.FromCtx(ctx).Error("purchase check failed",
			zap.Int64("user_id", userID),
			zap.Int64("course_id", courseID),
			zap.Error(err),
		)
		return Deny(ReasonUnavailable)
	}
	if !purchased {
		return Deny(ReasonPurchaseRequired)
	}
	return Allow()
}

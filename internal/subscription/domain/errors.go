package domain

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrAlreadyCanceled      = errors.New("subscription is already canceled")
	ErrNotPaused            = errors.New("subscription is not paused")
	ErrPauseDateNotFuture   = errors.New("pause date must be in the future")
	ErrSamePlan             = errors.New("subscription is already on this plan")
	ErrInvalidSubscription  = errors.New("invalid subscription id")
)

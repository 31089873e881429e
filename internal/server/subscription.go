package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	plandomain "github.com/middleworldfarms/soilsync/internal/plan/domain"
	subscriptiondomain "github.com/middleworldfarms/soilsync/internal/subscription/domain"
)

func subscriptionIDFromPath(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid subscription id"))
		return 0, false
	}
	return id, true
}

func (s *Server) GetSubscription(c *gin.Context) {
	id, ok := subscriptionIDFromPath(c)
	if !ok {
		return
	}

	sub, err := s.subs.FindByID(c.Request.Context(), s.db, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if sub == nil {
		AbortWithError(c, subscriptiondomain.ErrSubscriptionNotFound)
		return
	}

	respondData(c, sub)
}

type pauseSubscriptionRequest struct {
	PauseUntil string `json:"pause_until"`
}

func (s *Server) PauseSubscription(c *gin.Context) {
	id, ok := subscriptionIDFromPath(c)
	if !ok {
		return
	}

	var req pauseSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	until, err := parseResumeDate(req.PauseUntil)
	if err != nil {
		AbortWithError(c, newValidationError("pause_until", "invalid_date", "pause_until must be RFC 3339 or 2006-01-02"))
		return
	}

	sub, err := s.lifecycle.Pause(c.Request.Context(), id, until)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

func (s *Server) ResumeSubscription(c *gin.Context) {
	id, ok := subscriptionIDFromPath(c)
	if !ok {
		return
	}

	sub, err := s.lifecycle.Resume(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

func (s *Server) CancelSubscription(c *gin.Context) {
	id, ok := subscriptionIDFromPath(c)
	if !ok {
		return
	}

	sub, err := s.lifecycle.Cancel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

type changePlanRequest struct {
	PlanID string `json:"plan_id"`
}

func (s *Server) ChangePlan(c *gin.Context) {
	id, ok := subscriptionIDFromPath(c)
	if !ok {
		return
	}

	var req changePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	planID, err := snowflake.ParseString(strings.TrimSpace(req.PlanID))
	if err != nil {
		AbortWithError(c, newValidationError("plan_id", "invalid_id", "invalid plan id"))
		return
	}

	sub, err := s.lifecycle.ChangePlan(c.Request.Context(), id, planID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

type changeDeliveryMethodRequest struct {
	Method string `json:"method"`
}

func (s *Server) ChangeDeliveryMethod(c *gin.Context) {
	id, ok := subscriptionIDFromPath(c)
	if !ok {
		return
	}

	var req changeDeliveryMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	method, err := plandomain.ParseFulfillmentMethod(strings.TrimSpace(req.Method))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sub, err := s.lifecycle.ChangeDeliveryMethod(c.Request.Context(), id, method)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

type changeFrequencyRequest struct {
	Frequency string `json:"frequency"`
}

func (s *Server) ChangeFrequency(c *gin.Context) {
	id, ok := subscriptionIDFromPath(c)
	if !ok {
		return
	}

	var req changeFrequencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	freq, err := plandomain.ParseFrequency(strings.TrimSpace(req.Frequency))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sub, err := s.lifecycle.ChangeFrequency(c.Request.Context(), id, freq)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

// parseResumeDate accepts a full timestamp or a bare date; bare dates mean
// midnight UTC of that day.
func parseResumeDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/service"
	"github.com/papercomputeco/recall/pkg/store"
	"github.com/papercomputeco/recall/pkg/utils"
)

// ErrorResponse is the error body for all failing API responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleVersion reports the running build.
func (s *Server) handleVersion(c *fiber.Ctx) error {
	return c.JSON(map[string]string{
		"version":   utils.Version,
		"sha":       utils.Sha,
		"buildtime": utils.Buildtime,
	})
}

// handleStats returns index totals.
func (s *Server) handleStats(c *fiber.Ctx) error {
	stats := s.service.Stats()

	return c.JSON(map[string]any{
		"users":  stats.Users,
		"events": stats.Events,
		"dirty":  stats.Dirty,
	})
}

// handleGetMemory returns the record for a user.
func (s *Server) handleGetMemory(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	record, err := s.service.Get(userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "memory not found"})
	}

	return c.JSON(record)
}

// handleCreateMemory creates a record, refusing to clobber an existing one
// unless ?overwrite=true.
func (s *Server) handleCreateMemory(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	overwrite := c.QueryBool("overwrite", false)

	var payload map[string]any
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "request body must be a JSON object"})
	}

	record, err := s.service.Create(c.Context(), userID, payload, overwrite)
	if err != nil {
		return s.mutationError(c, userID, err)
	}

	return c.JSON(record)
}

// handlePatchMemory deep-merges the payload into the user's record, creating
// it when absent.
func (s *Server) handlePatchMemory(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	var payload map[string]any
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "request body must be a JSON object"})
	}

	record, err := s.service.Patch(c.Context(), userID, payload)
	if err != nil {
		return s.mutationError(c, userID, err)
	}

	return c.JSON(record)
}

// mutationError maps service errors onto HTTP statuses: conflict 409,
// validation 422, malformed input 400, durability 500.
func (s *Server) mutationError(c *fiber.Ctx, userID string, err error) error {
	var conflict service.ConflictError
	if errors.As(err, &conflict) {
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: conflict.Error()})
	}

	var validation *memory.ValidationError
	if errors.As(err, &validation) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: validation.Error()})
	}

	var input *memory.InputError
	if errors.As(err, &input) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: input.Error()})
	}

	var durability store.DurabilityError
	if errors.As(err, &durability) {
		s.logger.Error("mutation committed but not persisted",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: durability.Error()})
	}

	s.logger.Error("mutation failed",
		zap.String("user_id", userID),
		zap.Error(err),
	)

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
}

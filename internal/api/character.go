package api

import (
	"net/http"
	"strconv"

	"ai-character-chat/backend/internal/models"
	"ai-character-chat/backend/internal/service"
	apperrors "ai-character-chat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// CharacterHandler serves the character CRUD surface.
type CharacterHandler struct {
	service *service.CharacterService
}

func NewCharacterHandler(service *service.CharacterService) *CharacterHandler {
	return &CharacterHandler{service: service}
}

func (h *CharacterHandler) CreateCharacter(c *gin.Context) {
	var req models.CreateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidRequest, err.Error()))
		return
	}

	character := models.Character{
		Name:        req.Name,
		Description: req.Description,
		Personality: req.Personality,
		UserID:      req.UserID,
	}
	if err := h.service.CreateCharacter(&character); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, character)
}

func (h *CharacterHandler) GetCharacter(c *gin.Context) {
	id, ok := characterIDParam(c)
	if !ok {
		return
	}

	character, err := h.service.GetCharacterByID(id)
	if err != nil {
		c.Error(apperrors.NewNotFoundError(apperrors.CodeCharacterNotFound, "Character not found"))
		return
	}
	c.JSON(http.StatusOK, character)
}

func (h *CharacterHandler) ListCharacters(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidRequest, "user_id query parameter is required"))
		return
	}

	characters, err := h.service.ListCharactersByUser(userID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, characters)
}

// characterIDParam parses the :id path segment, reporting a bad request on
// failure.
func characterIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidRequest, "Invalid character ID"))
		return 0, false
	}
	return uint(id), true
}

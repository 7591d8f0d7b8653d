package server

import (
	"errors"
	"net/http"

	"github.com/dyluth/osechi/internal/textgen"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleGenerateMeaning(c *gin.Context) {
	var req textgen.MeaningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	meaning, err := s.deps.TextGen.GenerateMeaning(c.Request.Context(), req)
	if err != nil {
		s.textgenError(c, err, "Failed to generate meaning")
		return
	}
	c.JSON(http.StatusOK, gin.H{"meaning": meaning})
}

func (s *Server) handleGenerateRecipe(c *gin.Context) {
	var req textgen.RecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	recipe, err := s.deps.TextGen.GenerateRecipe(c.Request.Context(), req)
	if err != nil {
		s.textgenError(c, err, "Failed to generate recipe")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipe": recipe})
}

func (s *Server) handleSuggestDish(c *gin.Context) {
	var req textgen.SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	suggestion, err := s.deps.TextGen.SuggestDish(c.Request.Context(), req)
	if err != nil {
		s.textgenError(c, err, "Failed to suggest dish")
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

func (s *Server) textgenError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, textgen.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server missing API Key"})
	case errors.Is(err, textgen.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, textgen.ErrBadResponse):
		c.JSON(http.StatusBadGateway, gin.H{"error": message})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

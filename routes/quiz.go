package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"prepai-backend/internal/logger"
	"prepai-backend/middleware"
	"prepai-backend/models"
	"prepai-backend/services"
	"prepai-backend/utils"
)

// QuizDeps bundles everything the quiz routes need.
type QuizDeps struct {
	Quiz   *services.QuizService
	Search *services.SearchService
	Index  services.VectorIndex
}

func SetupQuizRoutes(router *gin.Engine, deps *QuizDeps, authMiddleware *middleware.AuthMiddleware) {
	quiz := router.Group("/api/v1/quiz")
	quiz.Use(authMiddleware.RequireAuth())

	// Free-form semantic search, scoped to the caller's own corpus
	quiz.GET("/search_docs", func(c *gin.Context) {
		ownerID, ok := middleware.GetUserID(c)
		if !ok {
			utils.RespondWithUnauthorized(c, "User ID required")
			return
		}
		query := c.Query("query")
		if query == "" {
			utils.RespondWithBadRequest(c, "query parameter is required", nil)
			return
		}
		c.JSON(http.StatusOK, deps.Search.Search(c.Request.Context(), query,
			services.IndexFilter{"owner_id": ownerID}))
	})

	// Push an already-parsed document straight into the index
	quiz.POST("/ingest", func(c *gin.Context) {
		ownerID, ok := middleware.GetUserID(c)
		if !ok {
			utils.RespondWithUnauthorized(c, "User ID required")
			return
		}
		var req models.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		docID, err := ingestAdHoc(c, deps, ownerID, &req)
		if err != nil {
			logger.Error("Ad-hoc ingest failed", "error", err)
			utils.RespondWithInternalError(c, "Ingestion failed", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, models.IngestResponse{
			Status:       "success",
			ID:           docID,
			StoredPrompt: req.UserPrompt,
		})
	})

	// Quiz from a parsed resume: retrieval keyed on document plus prompt
	quiz.POST("/resume", func(c *gin.Context) {
		ownerID, ok := middleware.GetUserID(c)
		if !ok {
			utils.RespondWithUnauthorized(c, "User ID required")
			return
		}
		var req models.QuizRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		query := req.ParsedDoc + req.UserPrompt
		retrieved := deps.Search.Search(c.Request.Context(), query,
			services.IndexFilter{"owner_id": ownerID})
		generateQuiz(c, deps, req.ParsedDoc, req.UserPrompt, retrieved)
	})

	// Quiz from notes: the document is ingested first, then retrieval runs
	// on the prompt alone
	quiz.POST("/notes", func(c *gin.Context) {
		ownerID, ok := middleware.GetUserID(c)
		if !ok {
			utils.RespondWithUnauthorized(c, "User ID required")
			return
		}
		var req models.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		if _, err := ingestAdHoc(c, deps, ownerID, &req); err != nil {
			logger.Error("Quiz notes ingest failed", "error", err)
			utils.RespondWithInternalError(c, "Ingestion failed", gin.H{"error": err.Error()})
			return
		}

		retrieved := deps.Search.Search(c.Request.Context(), req.UserPrompt,
			services.IndexFilter{"owner_id": ownerID})
		generateQuiz(c, deps, req.ParsedDoc, req.UserPrompt, retrieved)
	})
}

// ingestAdHoc stores a pre-parsed document as a single index entry tagged
// with the caller's owner id, so owner-scoped retrieval can see it.
func ingestAdHoc(c *gin.Context, deps *QuizDeps, ownerID primitive.ObjectID, req *models.IngestRequest) (string, error) {
	docID := req.ID
	if docID == "" {
		docID = uuid.NewString()
	}

	entry := models.ChunkEntry{
		ChunkID:    docID,
		OwnerID:    ownerID,
		SourceFile: req.UserPrompt,
		Text:       req.ParsedDoc,
	}
	if err := deps.Index.Add(c.Request.Context(), []models.ChunkEntry{entry}); err != nil {
		return "", err
	}
	return docID, nil
}

func generateQuiz(c *gin.Context, deps *QuizDeps, parsedDoc, userPrompt, retrieved string) {
	quiz, err := deps.Quiz.Generate(c.Request.Context(), parsedDoc, userPrompt, retrieved)
	if errors.Is(err, services.ErrInvalidQuizOutput) {
		utils.RespondWithBadRequest(c, "Invalid input", gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		logger.Error("Quiz generation failed", "error", err)
		utils.RespondWithInternalError(c, "Quiz generation failed", nil)
		return
	}
	c.JSON(http.StatusCreated, quiz)
}

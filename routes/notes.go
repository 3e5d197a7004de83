package routes

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"prepai-backend/internal/config"
	"prepai-backend/internal/logger"
	"prepai-backend/internal/queue"
	"prepai-backend/internal/store"
	"prepai-backend/middleware"
	"prepai-backend/models"
	"prepai-backend/services"
	"prepai-backend/utils"
)

// NotesDeps bundles everything the notes routes need.
type NotesDeps struct {
	Cfg         *config.Config
	Stores      *store.Stores
	Notes       *services.NotesService
	Chat        *services.ChatService
	Search      *services.SearchService
	AsynqClient *asynq.Client
}

func SetupNotesRoutes(router *gin.Engine, deps *NotesDeps, authMiddleware *middleware.AuthMiddleware) {
	notes := router.Group("/api/v1/notes")
	notes.Use(authMiddleware.RequireAuth())

	notes.POST("/upload_notes", func(c *gin.Context) { uploadNotes(c, deps) })
	notes.GET("/", func(c *gin.Context) { listNotes(c, deps) })
	notes.GET("/:note_id/content", func(c *gin.Context) { noteContent(c, deps) })
	notes.PUT("/:note_id", func(c *gin.Context) { renameNote(c, deps) })
	notes.DELETE("/:note_id", func(c *gin.Context) { deleteNote(c, deps) })

	notes.POST("/sessions", func(c *gin.Context) { createSession(c, deps) })
	notes.GET("/sessions/:note_id", func(c *gin.Context) { listSessions(c, deps) })
	notes.GET("/history/:session_id", func(c *gin.Context) { sessionHistory(c, deps) })
	notes.POST("/chat/:session_id", func(c *gin.Context) { sessionChat(c, deps) })

	notes.POST("/stream_chat", func(c *gin.Context) { streamChat(c, deps) })
}

func uploadNotes(c *gin.Context, deps *NotesDeps) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		utils.RespondWithUnauthorized(c, "User ID required")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.RespondWithBadRequest(c, "A file upload is required", gin.H{"error": err.Error()})
		return
	}
	if fileHeader.Size > deps.Cfg.MaxFileSize {
		utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large",
			"File exceeds the maximum allowed size", gin.H{"max_bytes": deps.Cfg.MaxFileSize})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to read upload", nil)
		return
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to read upload", nil)
		return
	}

	// Large uploads go through the queue; the caller polls the notes list.
	if deps.AsynqClient != nil && fileHeader.Size > deps.Cfg.SyncProcessingLimit {
		enqueueIngest(c, deps, ownerID, fileHeader.Filename, raw)
		return
	}

	note, chunks, err := deps.Notes.Ingest(c.Request.Context(), ownerID, fileHeader.Filename, raw)
	if errors.Is(err, services.ErrEmptyDocument) {
		utils.RespondWithBadRequest(c, "No text could be extracted from this document", nil)
		return
	}
	if err != nil {
		logger.Error("Upload ingest failed", "filename", fileHeader.Filename, "error", err)
		utils.RespondWithInternalError(c, "Error processing document", gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.UploadResponse{
		Status:         "success",
		Filename:       fileHeader.Filename,
		DocID:          note.ID.Hex(),
		ChunksIngested: chunks,
	})
}

func enqueueIngest(c *gin.Context, deps *NotesDeps, ownerID primitive.ObjectID, filename string, raw []byte) {
	staged, err := os.CreateTemp("", "staged-upload-*")
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to stage upload", nil)
		return
	}
	stagedPath := staged.Name()
	if _, err := staged.Write(raw); err != nil {
		staged.Close()
		os.Remove(stagedPath)
		utils.RespondWithInternalError(c, "Failed to stage upload", nil)
		return
	}
	staged.Close()

	task, err := queue.NewIngestNoteTask(ownerID, filename, stagedPath)
	if err != nil {
		os.Remove(stagedPath)
		utils.RespondWithInternalError(c, "Failed to queue upload", nil)
		return
	}
	info, err := deps.AsynqClient.Enqueue(task)
	if err != nil {
		os.Remove(stagedPath)
		logger.Error("Enqueue failed", "filename", filename, "error", err)
		utils.RespondWithInternalError(c, "Failed to queue upload", nil)
		return
	}

	logger.Info("Upload queued for async ingest", "filename", filename, "task_id", info.ID)
	c.JSON(http.StatusAccepted, models.UploadResponse{
		Status:   "queued",
		Filename: filename,
		TaskID:   info.ID,
	})
}

func listNotes(c *gin.Context, deps *NotesDeps) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		utils.RespondWithUnauthorized(c, "User ID required")
		return
	}

	infos, err := deps.Notes.List(c.Request.Context(), ownerID)
	if err != nil {
		logger.Error("Note listing failed", "error", err)
		utils.RespondWithInternalError(c, "Failed to list notes", nil)
		return
	}
	c.JSON(http.StatusOK, infos)
}

func noteContent(c *gin.Context, deps *NotesDeps) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		utils.RespondWithUnauthorized(c, "User ID required")
		return
	}
	noteID, err := primitive.ObjectIDFromHex(c.Param("note_id"))
	if err != nil {
		utils.RespondWithBadRequest(c, "Invalid note id", nil)
		return
	}

	note, raw, err := deps.Notes.Content(c.Request.Context(), noteID, ownerID)
	if errors.Is(err, services.ErrDocumentNotFound) {
		utils.RespondWithNotFound(c, "Note not found")
		return
	}
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to load note", nil)
		return
	}

	c.Header("Content-Disposition", "inline; filename="+note.Filename)
	c.Data(http.StatusOK, contentTypeFor(note.Filename), raw)
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filenameExt(filename)) {
	case ".html", ".htm":
		return "text/html"
	case ".txt", ".md":
		return "text/plain"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/pdf"
	}
}

func filenameExt(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx >= 0 {
		return filename[idx:]
	}
	return ""
}

func renameNote(c *gin.Context, deps *NotesDeps) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		utils.RespondWithUnauthorized(c, "User ID required")
		return
	}
	noteID, err := primitive.ObjectIDFromHex(c.Param("note_id"))
	if err != nil {
		utils.RespondWithBadRequest(c, "Invalid note id", nil)
		return
	}

	var req models.RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
		return
	}

	note, err := deps.Notes.Rename(c.Request.Context(), noteID, ownerID, req.NewFilename)
	if errors.Is(err, services.ErrDocumentNotFound) {
		utils.RespondWithNotFound(c, "Note not found")
		return
	}
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to rename note", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         note.ID.Hex(),
		"filename":   note.Filename,
		"created_at": note.CreatedAt,
	})
}

func deleteNote(c *gin.Context, deps *NotesDeps) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		utils.RespondWithUnauthorized(c, "User ID required")
		return
	}
	noteID, err := primitive.ObjectIDFromHex(c.Param("note_id"))
	if err != nil {
		utils.RespondWithBadRequest(c, "Invalid note id", nil)
		return
	}

	err = deps.Notes.Delete(c.Request.Context(), noteID, ownerID)
	if errors.Is(err, services.ErrDocumentNotFound) {
		utils.RespondWithNotFound(c, "Note not found")
		return
	}
	if err != nil {
		logger.Error("Note delete failed", "note_id", noteID.Hex(), "error", err)
		utils.RespondWithInternalError(c, "Failed to delete note", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Note deleted"})
}

func createSession(c *gin.Context, deps *NotesDeps) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		utils.RespondWithUnauthorized(c, "User ID required")
		return
	}

	var req models.SessionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
		return
	}
	noteID, err := primitive.ObjectIDFromHex(req.NoteID)
	if err != nil {
		utils.RespondWithBadRequest(c, "Invalid note id", nil)
		return
	}

	// The session must point at a note the caller owns
	if _, _, err := deps.Notes.Content(c.Request.Context(), noteID, ownerID); err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			utils.RespondWithNotFound(c, "Note not found")
			return
		}
		utils.RespondWithInternalError(c, "Failed to verify note", nil)
		return
	}

	session := &models.ChatSession{
		ID:      uuid.NewString(),
		Name:    req.Name,
		NoteID:  noteID,
		OwnerID: ownerID,
	}
	if err := deps.Stores.Sessions.Insert(c.Request.Context(), session); err != nil {
		logger.Error("Session insert failed", "error", err)
		utils.RespondWithInternalError(c, "Failed to create session", nil)
		return
	}

	c.JSON(http.StatusOK, models.SessionResponse{
		ID:        session.ID,
		Name:      session.Name,
		NoteID:    session.NoteID.Hex(),
		CreatedAt: session.CreatedAt,
	})
}

func listSessions(c *gin.Context, deps *NotesDeps) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		utils.RespondWithUnauthorized(c, "User ID required")
		return
	}
	noteID, err := primitive.ObjectIDFromHex(c.Param("note_id"))
	if err != nil {
		utils.RespondWithBadRequest(c, "Invalid note id", nil)
		return
	}

	sessions, err := deps.Stores.Sessions.ListByNote(c.Request.Context(), noteID, ownerID)
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to list sessions", nil)
		return
	}

	out := make([]models.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, models.SessionResponse{
			ID:        s.ID,
			Name:      s.Name,
			NoteID:    s.NoteID.Hex(),
			CreatedAt: s.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func sessionHistory(c *gin.Context, deps *NotesDeps) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		utils.RespondWithUnauthorized(c, "User ID required")
		return
	}
	sessionID := c.Param("session_id")

	if _, err := deps.Stores.Sessions.Get(c.Request.Context(), sessionID, ownerID); err != nil {
		utils.RespondWithNotFound(c, "Session not found")
		return
	}

	history, err := deps.Stores.Messages.History(c.Request.Context(), sessionID)
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to load history", nil)
		return
	}
	c.JSON(http.StatusOK, history)
}

// sessionChat is the session-backed streaming chat: the user turn is saved
// up front, retrieval is scoped to the session's note, and the assistant
// turn is saved only after the client drains the whole stream.
func sessionChat(c *gin.Context, deps *NotesDeps) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		utils.RespondWithUnauthorized(c, "User ID required")
		return
	}
	sessionID := c.Param("session_id")

	var req models.SessionChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
		return
	}

	session, err := deps.Stores.Sessions.Get(c.Request.Context(), sessionID, ownerID)
	if err != nil {
		utils.RespondWithNotFound(c, "Session not found")
		return
	}

	// Heal the index before retrieval if its entries went missing
	if err := deps.Notes.EnsureIndexed(c.Request.Context(), session.NoteID); err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			utils.RespondWithNotFound(c, "Note data not found")
			return
		}
		logger.Error("Index repair failed before chat", "note_id", session.NoteID.Hex(), "error", err)
		utils.RespondWithInternalError(c, "Failed to restore document index", nil)
		return
	}

	userMsg := &models.ChatMessage{
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   req.Prompt,
	}
	if err := deps.Stores.Messages.Append(c.Request.Context(), userMsg); err != nil {
		utils.RespondWithInternalError(c, "Failed to save message", nil)
		return
	}

	retrieved := deps.Search.Search(c.Request.Context(), req.Prompt,
		services.IndexFilter{"note_id": session.NoteID})

	rows, err := deps.Stores.Messages.History(c.Request.Context(), sessionID)
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to load history", nil)
		return
	}
	history := make([]models.ChatTurn, 0, len(rows))
	for _, m := range rows {
		history = append(history, models.ChatTurn{Role: m.Role, Content: m.Content})
	}

	fragments := deps.Chat.Stream(c.Request.Context(), history, "", retrieved, sessionID)
	streamPlainText(c, fragments)
}

// streamChat is the stateless variant: the caller owns the history and
// nothing is persisted unless a session id is supplied. Retrieval runs
// over the caller's whole corpus, never anyone else's.
func streamChat(c *gin.Context, deps *NotesDeps) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		utils.RespondWithUnauthorized(c, "User ID required")
		return
	}

	var req models.StreamChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
		return
	}

	query := req.Context + ";" + req.Messages[len(req.Messages)-1].Content
	retrieved := deps.Search.Search(c.Request.Context(), query,
		services.IndexFilter{"owner_id": ownerID})

	fragments := deps.Chat.Stream(c.Request.Context(), req.Messages, req.Context, retrieved, req.SessionID)
	streamPlainText(c, fragments)
}

func streamPlainText(c *gin.Context, fragments <-chan string) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		fragment, ok := <-fragments
		if !ok {
			return false
		}
		w.Write([]byte(fragment))
		return true
	})
}

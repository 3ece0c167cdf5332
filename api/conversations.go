package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Desarso/chatrelay/models"
	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

func (s *Server) handleListConversations(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	// Fetch one extra row to detect whether another page exists.
	summaries, err := s.Store.List(c.Request.Context(), limit+1, offset)
	if err != nil {
		s.Logger.Printf("Error listing conversations: %v", err)
		c.JSON(http.StatusInternalServerError, models.APIResponse{Success: false, Error: "failed to list conversations"})
		return
	}

	// The starred filter applies to the fetched page, so offset and
	// has_more still count unfiltered rows.
	if starredParam := c.Query("starred"); starredParam != "" {
		wantStarred := starredParam == "true"
		filtered := summaries[:0]
		for _, summary := range summaries {
			if summary.Starred == wantStarred {
				filtered = append(filtered, summary)
			}
		}
		summaries = filtered
	}

	hasMore := len(summaries) > limit
	if hasMore {
		summaries = summaries[:limit]
	}

	c.JSON(http.StatusOK, models.ConversationList{
		Conversations: summaries,
		Total:         offset + len(summaries),
		HasMore:       hasMore,
	})
}

func (s *Server) handleGetConversation(c *gin.Context) {
	id := c.Param("conversation_id")

	conv, err := s.Store.Get(c.Request.Context(), id)
	if err != nil {
		s.Logger.Printf("Error fetching conversation %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, models.APIResponse{Success: false, Error: "failed to fetch conversation"})
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, models.APIResponse{Success: false, Error: "conversation not found"})
		return
	}

	c.JSON(http.StatusOK, conv)
}

func (s *Server) handleStarConversation(c *gin.Context) {
	id := c.Param("conversation_id")

	var req models.StarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: "invalid request body"})
		return
	}

	ok, err := s.Store.Star(c.Request.Context(), id, req.Starred)
	if err != nil {
		s.Logger.Printf("Error starring conversation %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, models.APIResponse{Success: false, Error: "failed to update conversation"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, models.APIResponse{Success: false, Error: "conversation not found"})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    map[string]any{"conversation_id": id, "starred": req.Starred},
	})
}

func (s *Server) handleRenameConversation(c *gin.Context) {
	id := c.Param("conversation_id")

	var req models.RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: "invalid request body"})
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: "title is required"})
		return
	}

	ok, err := s.Store.Rename(c.Request.Context(), id, title)
	if err != nil {
		s.Logger.Printf("Error renaming conversation %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, models.APIResponse{Success: false, Error: "failed to rename conversation"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, models.APIResponse{Success: false, Error: "conversation not found"})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    map[string]any{"conversation_id": id, "title": title},
	})
}

func (s *Server) handleDeleteConversation(c *gin.Context) {
	id := c.Param("conversation_id")

	ok, err := s.Store.Delete(c.Request.Context(), id)
	if err != nil {
		s.Logger.Printf("Error deleting conversation %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, models.APIResponse{Success: false, Error: "failed to delete conversation"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, models.APIResponse{Success: false, Error: "conversation not found"})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{Success: true, Message: "conversation deleted"})
}

func (s *Server) handleDeleteNonStarred(c *gin.Context) {
	count, err := s.Store.DeleteAllNonStarred(c.Request.Context())
	if err != nil {
		s.Logger.Printf("Error deleting non-starred conversations: %v", err)
		c.JSON(http.StatusInternalServerError, models.APIResponse{Success: false, Error: "failed to delete conversations"})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    map[string]any{"deleted_count": count},
	})
}

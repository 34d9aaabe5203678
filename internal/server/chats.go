package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	chatdomain "github.com/warrantydesk/warrantydesk/internal/chat/domain"
)

func (s *Server) SendChatMessage(c *gin.Context) {
	claimID, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	req := chatdomain.SendRequest{ClaimID: claimID}

	if isMultipart(c) {
		req.Content = c.PostForm("content")
		header, err := c.FormFile("file")
		if err == nil {
			f, err := header.Open()
			if err != nil {
				AbortWithError(c, invalidRequestError())
				return
			}
			defer f.Close()
			req.File = &chatdomain.FilePayload{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Reader:      f,
			}
		}
	} else {
		var body struct {
			Content string `json:"content"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		req.Content = body.Content
	}

	message, err := s.chatSvc.Send(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": message})
}

func (s *Server) ChatThread(c *gin.Context) {
	claimID, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	messages, err := s.chatSvc.Thread(c.Request.Context(), claimID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messages})
}

func (s *Server) ChatResponseTimes(c *gin.Context) {
	page := queryInt(c, "page", 0)
	limit := queryInt(c, "limit", 0)

	resp, err := s.chatSvc.ResponseTimes(c.Request.Context(), page, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) TopChatResponseTimes(c *gin.Context) {
	n := queryInt(c, "n", 0)

	entries, err := s.chatSvc.TopResponseTimes(c.Request.Context(), n)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}

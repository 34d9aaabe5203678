package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	donationdomain "github.com/warrantydesk/warrantydesk/internal/donation/domain"
	"github.com/warrantydesk/warrantydesk/internal/donation/gateway"
)

// webhookBodyLimit bounds the raw payload read before signature checks.
const webhookBodyLimit = 1 << 20

func (s *Server) CreateDonationIntent(c *gin.Context) {
	allowed, err := s.intentLimiter.Allow(c.Request.Context(), c.ClientIP())
	if err != nil {
		s.log.Warn("donation rate limiter unavailable", zap.Error(err))
	} else if !allowed {
		AbortWithError(c, ErrTooManyRequests)
		return
	}

	var req donationdomain.IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.donationSvc.CreateIntent(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

// DonationWebhook reads the raw body before anything else; the signature
// covers the exact bytes the gateway sent.
func (s *Server) DonationWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	signature := c.GetHeader(gateway.SignatureHeader)
	if err := s.donationSvc.IngestWebhook(c.Request.Context(), payload, signature); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) ListDonations(c *gin.Context) {
	payments, err := s.donationSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payments})
}

func (s *Server) DonationReceipt(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	receipt, err := s.donationSvc.ReceiptPDF(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+receipt.Filename+`"`)
	c.Data(http.StatusOK, "application/pdf", receipt.Content)
}

func (s *Server) ResendDonationReceipt(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payment, err := s.donationSvc.ResendReceipt(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payment})
}

package server

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	invoicedomain "github.com/warrantydesk/warrantydesk/internal/invoice/domain"
)

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicedomain.CreateRequest
	if isMultipart(c) {
		reports, err := s.bindPayloadWithReports(c, &req)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		req.AttachedReports = append(req.AttachedReports, reports...)
	} else if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.invoiceSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) ListInvoices(c *gin.Context) {
	invoices, err := s.invoiceSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoices})
}

func (s *Server) ListArchivedInvoices(c *gin.Context) {
	invoices, err := s.invoiceSvc.ListArchived(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoices})
}

func (s *Server) GetInvoice(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.invoiceSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) EditInvoice(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req invoicedomain.EditRequest
	if isMultipart(c) {
		reports, err := s.bindPayloadWithReports(c, &req)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		req.AttachReports = append(req.AttachReports, reports...)
	} else if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.invoiceSvc.Edit(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) ChangeInvoiceStatus(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		Status invoicedomain.Status `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.invoiceSvc.ChangeStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) SendInvoice(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.invoiceSvc.Send(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.invoiceSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) ArchiveInvoices(c *gin.Context) {
	ids, err := bindIDs(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.invoiceSvc.Archive(c.Request.Context(), ids)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) UnarchiveInvoices(c *gin.Context) {
	ids, err := bindIDs(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.invoiceSvc.Unarchive(c.Request.Context(), ids)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) InvoiceStats(c *gin.Context) {
	resp, err := s.invoiceSvc.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// bindPayloadWithReports decodes the "payload" JSON field into dst and
// stores any "reports" file parts, returning their metadata.
func (s *Server) bindPayloadWithReports(c *gin.Context, dst interface{}) ([]invoicedomain.AttachedReport, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, invalidRequestError()
	}

	payloads := form.Value["payload"]
	if len(payloads) != 1 {
		return nil, newValidationError("payload", "invalid_payload", "payload field is required")
	}
	if err := json.Unmarshal([]byte(payloads[0]), dst); err != nil {
		return nil, newValidationError("payload", "invalid_payload", "payload is not valid json")
	}

	files := form.File["reports"]
	reports := make([]invoicedomain.AttachedReport, 0, len(files))
	for _, header := range files {
		report, err := s.storeReport(c, header)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *Server) storeReport(c *gin.Context, header *multipart.FileHeader) (invoicedomain.AttachedReport, error) {
	f, err := header.Open()
	if err != nil {
		return invoicedomain.AttachedReport{}, invalidRequestError()
	}
	defer f.Close()

	stored, err := s.storage.Save(c.Request.Context(), header.Filename, header.Header.Get("Content-Type"), f)
	if err != nil {
		return invoicedomain.AttachedReport{}, err
	}
	return invoicedomain.AttachedReport{
		Filename:    stored.Filename,
		StoredName:  stored.StoredName,
		ContentType: stored.ContentType,
		Size:        stored.Size,
	}, nil
}

package httpapi

import (
	"net/http"

	"voicedesk/internal/records"
	"voicedesk/internal/reporting"

	"github.com/gin-gonic/gin"
)

// ReportSummary accepts optional from/to calendar days; to is inclusive.
func (h Handlers) ReportSummary(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	from, err := records.ParseDay(c.Query("from"))
	if err != nil {
		writeError(c, err)
		return
	}
	to, err := records.ParseDay(c.Query("to"))
	if err != nil {
		writeError(c, err)
		return
	}
	req := reporting.SummaryRequest{UserID: uid}
	if from != nil {
		req.Range.From = *from
	}
	if to != nil {
		req.Range.To = to.AddDate(0, 0, 1)
	}
	out, err := h.Reports.Summary(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) ReportCampaign(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	out, err := h.Reports.ConversionMetrics(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

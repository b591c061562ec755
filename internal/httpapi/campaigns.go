package httpapi

import (
	"fmt"
	"net/http"

	"voicedesk/internal/campaigns"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h Handlers) ListCampaigns(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	list, err := h.Campaigns.List(c.Request.Context(), uid, c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": list})
}

func (h Handlers) CreateCampaign(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	var req campaigns.CreateRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.Campaigns.Create(c.Request.Context(), uid, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h Handlers) GetCampaign(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	d, err := h.Campaigns.Get(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h Handlers) CancelCampaign(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	camp, err := h.Campaigns.Cancel(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, camp)
}

func (h Handlers) ExportCampaign(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	name, b, err := h.Campaigns.Export(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, b)
}

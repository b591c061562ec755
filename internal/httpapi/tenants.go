package httpapi

import (
	"net/http"

	"voicedesk/internal/tenants"

	"github.com/gin-gonic/gin"
)

func (h Handlers) GetMe(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	p, err := h.Tenants.GetMe(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) PatchMe(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	var patch tenants.ProfilePatch
	if !bindJSON(c, &patch) {
		return
	}
	p, err := h.Tenants.PatchMe(c.Request.Context(), uid, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// --- Admin ---

func (h Handlers) ListUsers(c *gin.Context) {
	users, err := h.Tenants.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h Handlers) PatchUser(c *gin.Context) {
	var patch tenants.AdminPatch
	if !bindJSON(c, &patch) {
		return
	}
	p, err := h.Tenants.PatchUser(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) ListPlans(c *gin.Context) {
	plans, err := h.Tenants.ListPlans(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

package httpapi

import (
	"net/http"

	"voicedesk/internal/records"

	"github.com/gin-gonic/gin"
)

func listFilter(c *gin.Context) (records.ListFilter, error) {
	from, err := records.ParseDay(c.Query("from"))
	if err != nil {
		return records.ListFilter{}, err
	}
	to, err := records.ParseDay(c.Query("to"))
	if err != nil {
		return records.ListFilter{}, err
	}
	return records.ListFilter{Estado: c.Query("estado"), From: from, To: to}, nil
}

// --- Pedidos ---

func (h Handlers) ListOrders(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	f, err := listFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := h.Records.ListOrders(c.Request.Context(), uid, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pedidos": out})
}

func (h Handlers) CreateOrder(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	var req records.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.Records.CreateOrder(c.Request.Context(), uid, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h Handlers) GetOrder(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	o, err := h.Records.GetOrder(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h Handlers) PatchOrder(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	var patch records.OrderPatch
	if !bindJSON(c, &patch) {
		return
	}
	o, err := h.Records.PatchOrder(c.Request.Context(), uid, c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h Handlers) DeleteOrder(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	if err := h.Records.DeleteOrder(c.Request.Context(), uid, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Reservaciones ---

func (h Handlers) ListReservations(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	f, err := listFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := h.Records.ListReservations(c.Request.Context(), uid, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservaciones": out})
}

func (h Handlers) CreateReservation(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	var req records.CreateReservationRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.Records.CreateReservation(c.Request.Context(), uid, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h Handlers) GetReservation(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	r, err := h.Records.GetReservation(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) PatchReservation(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	var patch records.ReservationPatch
	if !bindJSON(c, &patch) {
		return
	}
	r, err := h.Records.PatchReservation(c.Request.Context(), uid, c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) DeleteReservation(c *gin.Context) {
	uid, ok := tenantID(c)
	if !ok {
		return
	}
	if err := h.Records.DeleteReservation(c.Request.Context(), uid, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

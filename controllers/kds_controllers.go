package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/billiard-pos/kds"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/services"
	"github.com/yeremiapane/billiard-pos/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type KitchenController struct {
	Kitchen *services.KitchenService
	Hub     *kds.Hub
}

func NewKitchenController(kitchen *services.KitchenService, hub *kds.Hub) *KitchenController {
	return &KitchenController{Kitchen: kitchen, Hub: hub}
}

// GetDisplay returns the tickets still to prepare.
func (kc *KitchenController) GetDisplay(c *gin.Context) {
	tickets, err := kc.Kitchen.Display(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Kitchen display", tickets)
}

// MarkItemServed records a partial serve of one line.
func (kc *KitchenController) MarkItemServed(c *gin.Context) {
	itemID, ok := uintParam(c, "item_id")
	if !ok {
		return
	}
	var req struct {
		Quantity int `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	order, err := kc.Kitchen.MarkItemServed(c.Request.Context(), itemID, req.Quantity)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item served", order)
}

func (kc *KitchenController) MarkOrderReady(c *gin.Context) {
	orderID, ok := uintParam(c, "order_id")
	if !ok {
		return
	}
	order, err := kc.Kitchen.MarkOrderReady(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order ready", order)
}

// MarkOrderServed serves every remaining line of the order.
func (kc *KitchenController) MarkOrderServed(c *gin.Context) {
	orderID, ok := uintParam(c, "order_id")
	if !ok {
		return
	}
	order, err := kc.Kitchen.MarkOrderServed(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order served", order)
}

// KDSHandler upgrades to a websocket and keeps the screen registered until
// it disconnects.
func (kc *KitchenController) KDSHandler(c *gin.Context) {
	role := c.GetString("role")
	if role != models.RoleChef && role != models.RoleStaff && role != models.RoleAdmin {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	kc.Hub.Register(ws, role)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	kc.Hub.Unregister(ws)
}

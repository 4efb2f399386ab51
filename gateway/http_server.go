// HTTP surface of the gateway. The storefront bot is the only intended
// caller; it polls /payment and renders whatever the verdict says
// instead of inventing its own notion of "paid".

package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/litepay-io/litepay-go/ltcchain"
)

const (
	ROUTE_HELLO   = "/hello"
	ROUTE_ADDRESS = "/address"
	ROUTE_PAYMENT = "/payment"
	ROUTE_SUMMARY = "/summary"
	ROUTE_TRACK   = "/track"
	ROUTE_UNTRACK = "/untrack"
	ROUTE_RATE    = "/rate"
)

type HttpServer struct {
	serverIP   string // listen ip
	serverPort string // listen port

	gateway *Gateway
}

func NewHttpServer(serverIP string, serverPort string, gateway *Gateway) *HttpServer {
	return &HttpServer{
		serverIP:   serverIP,
		serverPort: serverPort,
		gateway:    gateway,
	}
}

// Hook up routes & handlers
func (h *HttpServer) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET(ROUTE_HELLO, Hello)
	router.POST(ROUTE_ADDRESS, h.NewAddress)
	router.GET(ROUTE_PAYMENT, h.Payment)
	router.GET(ROUTE_SUMMARY, h.Summary)
	router.POST(ROUTE_TRACK, h.Track)
	router.POST(ROUTE_UNTRACK, h.Untrack)
	router.GET(ROUTE_RATE, h.Rate)

	return router
}

// Hook up router & ip:port
func (h *HttpServer) Run() {
	router := h.SetupRouter()
	address := h.serverIP + ":" + h.serverPort
	if err := router.Run(address); err != nil {
		panic(err)
	}
}

// Example route.
func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "world",
	})
}

// NewAddress issues a fresh payment address.
// Optional query: amount (decimal LTC) baked into the payment URI.
func (h *HttpServer) NewAddress(c *gin.Context) {
	var amount int64
	if raw := c.Query("amount"); raw != "" {
		parsed, err := ltcchain.ParseAmount(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amount = parsed
	}

	issued, err := h.gateway.RequestNewAddress(amount)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": issued})
}

// Payment checks whether an address (or a specific txid) has received
// the expected amount.
// Query: address, amount (decimal LTC), final (bool, default true),
// txid (optional).
func (h *HttpServer) Payment(c *gin.Context) {
	address := c.Query("address")
	rawAmount := c.Query("amount")
	if address == "" || rawAmount == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address and amount must be provided"})
		return
	}
	expected, err := ltcchain.ParseAmount(rawAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	requireConf := c.DefaultQuery("final", "true") == "true"

	var verdict interface{}
	if txid := c.Query("txid"); txid != "" {
		verdict, err = h.gateway.CheckPaymentTx(c.Request.Context(), address, txid, expected, requireConf)
	} else {
		verdict, err = h.gateway.CheckPayment(c.Request.Context(), address, expected, requireConf)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": verdict})
}

// Summary returns the lifetime received total and tx count of an
// address. Query: address.
func (h *HttpServer) Summary(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address must be provided"})
		return
	}
	summary, err := h.gateway.AddressSummary(c.Request.Context(), address)
	if err != nil {
		if errors.Is(err, ltcchain.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// Track adds an address to the fast-notice mempool view.
func (h *HttpServer) Track(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address must be provided"})
		return
	}
	if err := h.gateway.Track(address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": "tracking"})
}

// Untrack removes an address from the fast-notice mempool view.
func (h *HttpServer) Untrack(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address must be provided"})
		return
	}
	h.gateway.Untrack(address)
	c.JSON(http.StatusOK, gin.H{"data": "untracked"})
}

// Rate quotes LTC in fiat, optionally converting an amount.
// Query: currency (default USD), fiat (optional decimal amount).
func (h *HttpServer) Rate(c *gin.Context) {
	currency := c.DefaultQuery("currency", "USD")
	rate := h.gateway.Rate(c.Request.Context(), currency)

	resp := gin.H{"rate": rate, "currency": currency}
	if raw := c.Query("fiat"); raw != "" {
		fiat, err := decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		litoshi := h.gateway.Convert(c.Request.Context(), fiat, currency)
		resp["ltc"] = ltcchain.FormatAmount(litoshi)
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

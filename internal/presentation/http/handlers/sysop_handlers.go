package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/messaging"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/security"
	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// SysOpHandlers handles sysop dashboard authentication, the live data
// socket, and log level control.
type SysOpHandlers struct {
	broadcaster *messaging.SysOpBroadcaster
	logger      *logging.ChanneledLogger
	upgrader    websocket.Upgrader
}

// NewSysOpHandlers creates the sysop handler set.
func NewSysOpHandlers(broadcaster *messaging.SysOpBroadcaster, logger *logging.ChanneledLogger) *SysOpHandlers {
	return &SysOpHandlers{
		broadcaster: broadcaster,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// AuthCheck reports whether a dashboard password is configured and whether
// the caller already holds a valid session.
func (h *SysOpHandlers) AuthCheck(c *gin.Context) {
	response := gin.H{
		"passwordRequired": config.SysopPasswordHash != "",
		"authenticated":    false,
	}
	if config.SysopPasswordHash == "" {
		response["message"] = "Set INKWELL_SYSOP_PASSWORD_HASH to protect the dashboard"
	}

	if token := bearerToken(c); token != "" && security.IsSysopToken(token, config.StreamTokenSecret) {
		response["authenticated"] = true
	}

	c.JSON(http.StatusOK, response)
}

// Login handles sysop authentication against the configured bcrypt hash.
func (h *SysOpHandlers) Login(c *gin.Context) {
	var request struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	if config.SysopPasswordHash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sysop login is not configured"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(config.SysopPasswordHash), []byte(request.Password)); err != nil {
		h.logger.System().Warn("Failed sysop login attempt", "remote", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		return
	}

	token, err := security.GenerateSysopToken(config.StreamTokenSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue session token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// RequireSysop guards dashboard routes. When no password hash is
// configured the dashboard is open, matching local development use.
func (h *SysOpHandlers) RequireSysop(c *gin.Context) {
	if config.SysopPasswordHash == "" {
		c.Next()
		return
	}

	token := bearerToken(c)
	if token == "" {
		token = c.Query("token")
	}
	if !security.IsSysopToken(token, config.StreamTokenSecret) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "sysop session required"})
		return
	}
	c.Next()
}

// Socket upgrades to the dashboard websocket and attaches it to the
// broadcaster for health snapshots and streamed log lines.
func (h *SysOpHandlers) Socket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.System().Error("SysOp socket upgrade failed", "error", err.Error())
		return
	}

	client := &messaging.SysOpClient{
		Conn: conn,
		Send: make(chan []byte, 64),
	}
	h.broadcaster.Register(client)

	go h.writePump(client)
	go h.readPump(client)
}

func (h *SysOpHandlers) writePump(client *messaging.SysOpClient) {
	defer client.Conn.Close()
	for frame := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

// readPump drains the socket so close frames are processed; the dashboard
// never sends application data.
func (h *SysOpHandlers) readPump(client *messaging.SysOpClient) {
	defer h.broadcaster.Unregister(client)
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

// GetLogLevels handles GET /api/sysop/log-levels.
func (h *SysOpHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": h.logger.GetChannelLevels()})
}

// SetLogLevel handles PUT /api/sysop/log-levels.
func (h *SysOpHandlers) SetLogLevel(c *gin.Context) {
	var request struct {
		Channel string `json:"channel" binding:"required"`
		Level   string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(request.Level))); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown level"})
		return
	}

	if err := h.logger.SetChannelLevel(logging.Channel(request.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"channel": request.Channel, "level": level.String()})
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-shelter-alerts/internal/advice"
	"github.com/mr1hm/go-shelter-alerts/internal/alerts"
	"github.com/mr1hm/go-shelter-alerts/internal/models"
	"github.com/mr1hm/go-shelter-alerts/internal/repository"
	"github.com/mr1hm/go-shelter-alerts/internal/shelter"
	"github.com/mr1hm/go-shelter-alerts/internal/verification"
)

const (
	defaultNearbyLimit = 3

	headerAPIKey = "X-API-KEY"
	headerUserID = "X-User-ID"
)

type AlertService interface {
	Create(ctx context.Context, in alerts.NewAlert) (*models.Alert, error)
	Get(ctx context.Context, id string) (*models.Alert, error)
	Live(ctx context.Context) ([]models.Alert, error)
	Active(ctx context.Context, point models.Coordinates) ([]alerts.Nearby, error)
}

type VoteCaster interface {
	CastVote(ctx context.Context, alertID, voterID string, dir models.VoteDirection) (*verification.VoteResult, error)
}

type ShelterFinder interface {
	FindNearest(ctx context.Context, point models.Coordinates, maxResults int, searchRadiusKm float64) ([]shelter.Result, error)
}

// Stats backs the health endpoint.
type Stats interface {
	Ping(ctx context.Context) error
	CountShelters(ctx context.Context) (int, error)
	CountLiveAlerts(ctx context.Context, now time.Time) (int, error)
}

type Deps struct {
	Alerts   AlertService
	Votes    VoteCaster
	Shelters ShelterFinder
	Devices  repository.DeviceRepository
	Stats    Stats
	Clock    clockwork.Clock
	Logger   *slog.Logger
	Version  string
	Debug    bool
	APIKey   string
}

type Handler struct {
	Deps
}

func NewHandler(deps Deps) *Handler {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("component", "api")
	return &Handler{Deps: deps}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	api := r.Group("/api")
	api.GET("/shelters/nearby", h.nearbyShelters)
	api.GET("/alerts/active", h.activeAlerts)
	api.GET("/alerts/map", h.alertMap)
	api.GET("/alerts/:id", h.getAlert)
	api.POST("/alerts", h.createAlert)
	api.POST("/alerts/:id/votes", h.castVote)
	api.POST("/devices/register", h.registerDevice)
	api.GET("/instructions", h.instructions)
}

func (h *Handler) health(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.Stats.Ping(ctx); err != nil {
		h.Logger.ErrorContext(ctx, "database ping failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "version": h.Version})
		return
	}

	shelters, err := h.Stats.CountShelters(ctx)
	if err != nil {
		h.internalError(c, "failed to count shelters", err)
		return
	}
	live, err := h.Stats.CountLiveAlerts(ctx, h.Clock.Now())
	if err != nil {
		h.internalError(c, "failed to count alerts", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.Version,
		"counts": gin.H{
			"shelters":      shelters,
			"active_alerts": live,
		},
	})
}

func (h *Handler) nearbyShelters(c *gin.Context) {
	point, ok := parsePoint(c)
	if !ok {
		writeError(c, http.StatusBadRequest, "Invalid lat, lon, or limit parameters")
		return
	}
	limit := defaultNearbyLimit
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			writeError(c, http.StatusBadRequest, "Invalid lat, lon, or limit parameters")
			return
		}
		limit = n
	}

	results, err := h.Shelters.FindNearest(c.Request.Context(), point, limit, shelter.DefaultSearchRadiusKm)
	if err != nil {
		h.internalError(c, "failed to find shelters", err)
		return
	}

	out := make([]shelterResponse, 0, len(results))
	for _, r := range results {
		out = append(out, toShelterResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) activeAlerts(c *gin.Context) {
	point, ok := parsePoint(c)
	if !ok {
		writeError(c, http.StatusBadRequest, "Invalid lat or lon parameters")
		return
	}

	nearby, err := h.Alerts.Active(c.Request.Context(), point)
	if err != nil {
		h.internalError(c, "failed to fetch alerts", err)
		return
	}

	out := make([]alertResponse, 0, len(nearby))
	for _, n := range nearby {
		resp := toAlertResponse(&n.Alert)
		d := n.DistanceKm
		resp.DistanceKm = &d
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) alertMap(c *gin.Context) {
	live, err := h.Alerts.Live(c.Request.Context())
	if err != nil {
		h.internalError(c, "failed to fetch alerts", err)
		return
	}

	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, toGeoJSON(live))
}

func (h *Handler) getAlert(c *gin.Context) {
	a, err := h.Alerts.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(c, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		h.internalError(c, "failed to fetch alert", err)
		return
	}
	c.JSON(http.StatusOK, toAlertResponse(a))
}

type createAlertRequest struct {
	HazardType   string  `json:"hazard_type" binding:"required"`
	Severity     string  `json:"severity"`
	CenterLat    float64 `json:"center_lat"`
	CenterLon    float64 `json:"center_lon"`
	RadiusM      int     `json:"radius_m"`
	ValidMinutes int     `json:"valid_minutes"`
	Source       string  `json:"source"`
	Official     bool    `json:"official"`
}

// createAlert accepts system alerts (API key) and community reports (user id).
// A report from a user holding the API key may be marked official.
func (h *Handler) createAlert(c *gin.Context) {
	trusted := h.Debug || (h.APIKey != "" && c.GetHeader(headerAPIKey) == h.APIKey)
	userID := strings.TrimSpace(c.GetHeader(headerUserID))
	if !trusted && userID == "" {
		writeError(c, http.StatusUnauthorized, "Invalid or missing X-API-KEY header")
		return
	}

	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	a, err := h.Alerts.Create(c.Request.Context(), alerts.NewAlert{
		HazardType:   req.HazardType,
		Severity:     req.Severity,
		CenterLat:    req.CenterLat,
		CenterLon:    req.CenterLon,
		RadiusM:      req.RadiusM,
		ValidMinutes: req.ValidMinutes,
		Source:       req.Source,
		CreatedBy:    userID,
		Official:     req.Official && trusted,
	})
	if errors.Is(err, alerts.ErrValidation) {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.internalError(c, "failed to create alert", err)
		return
	}

	resp := toAlertResponse(a)
	resp.Message = fmt.Sprintf("%s %s alert created successfully", a.Severity.Display(), a.HazardType.Display())
	c.JSON(http.StatusCreated, resp)
}

type voteRequest struct {
	Direction string `json:"direction" binding:"required"`
}

func (h *Handler) castVote(c *gin.Context) {
	voterID := strings.TrimSpace(c.GetHeader(headerUserID))
	if voterID == "" {
		writeError(c, http.StatusUnauthorized, "missing X-User-ID header")
		return
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	dir, err := models.ParseVoteDirection(req.Direction)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Votes.CastVote(c.Request.Context(), c.Param("id"), voterID, dir)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(c, http.StatusNotFound, "alert not found")
		return
	case errors.Is(err, verification.ErrSelfVote):
		writeError(c, http.StatusForbidden, "cannot vote on your own alert")
		return
	case errors.Is(err, verification.ErrAlertRejected):
		writeError(c, http.StatusConflict, "alert has been rejected and no longer accepts votes")
		return
	case err != nil:
		h.internalError(c, "failed to record vote", err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"alert_id":        c.Param("id"),
		"direction":       res.Vote.Direction,
		"created":         res.Created,
		"score":           res.Score,
		"status":          res.Status,
		"previous_status": res.PreviousStatus,
	})
}

type registerDeviceRequest struct {
	DeviceID  string   `json:"device_id" binding:"required"`
	PushToken string   `json:"push_token"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
}

func (h *Handler) registerDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if (req.Lat == nil) != (req.Lon == nil) {
		writeError(c, http.StatusBadRequest, "lat and lon must be provided together")
		return
	}
	if req.Lat != nil && !validPoint(*req.Lat, *req.Lon) {
		writeError(c, http.StatusBadRequest, "lat must be within [-90, 90] and lon within [-180, 180]")
		return
	}

	now := h.Clock.Now()
	d := &models.Device{
		DeviceID:   strings.TrimSpace(req.DeviceID),
		PushToken:  strings.TrimSpace(req.PushToken),
		LastLat:    req.Lat,
		LastLon:    req.Lon,
		LastSeenAt: &now,
	}
	if err := h.Devices.UpsertDevice(c.Request.Context(), d); err != nil {
		h.internalError(c, "failed to register device", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"device_id":    d.DeviceID,
		"has_token":    d.PushToken != "",
		"has_location": req.Lat != nil,
		"last_seen_at": now.UTC(),
	})
}

func (h *Handler) instructions(c *gin.Context) {
	hazard, err := models.ParseHazardType(c.Query("hazard_type"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	eta := 0
	if e := c.Query("eta_seconds"); e != "" {
		if eta, err = strconv.Atoi(e); err != nil || eta < 0 {
			writeError(c, http.StatusBadRequest, "eta_seconds must be a non-negative integer")
			return
		}
	}
	c.JSON(http.StatusOK, advice.For(hazard, eta))
}

func parsePoint(c *gin.Context) (models.Coordinates, bool) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lon, err2 := strconv.ParseFloat(c.Query("lon"), 64)
	if err1 != nil || err2 != nil || !validPoint(lat, lon) {
		return models.Coordinates{}, false
	}
	return models.Coordinates{Latitude: lat, Longitude: lon}, true
}

func validPoint(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lon) && lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{"code": status, "message": message},
	})
}

func (h *Handler) internalError(c *gin.Context, message string, err error) {
	h.Logger.ErrorContext(c.Request.Context(), message, "path", c.FullPath(), "error", err)
	writeError(c, http.StatusInternalServerError, message)
}

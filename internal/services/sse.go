package services

import (
	"sync"

	"github.com/sitesafe/hsekpi/internal/models"
)

// Event kinds pushed to live dashboards
const (
	EventReportGenerated = "report_generated"
	EventReportStatus    = "report_status"
	EventDeviation       = "deviation"
)

// KpiEvent is a real-time update about a weekly report or a deviation
type KpiEvent struct {
	Kind       string  `json:"kind"`
	ID         uint    `json:"id"`
	ProjectID  uint    `json:"project_id"`
	WeekNumber int     `json:"week_number,omitempty"`
	ReportYear int     `json:"report_year,omitempty"`
	Status     string  `json:"status"`
	TF         float64 `json:"tf,omitempty"`
	TG         float64 `json:"tg,omitempty"`
	Pinned     bool    `json:"pinned,omitempty"`
}

// SSEHub manages SSE client connections and event broadcasting
type SSEHub struct {
	clients map[string]chan KpiEvent
	mu      sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]chan KpiEvent),
	}
}

// Subscribe registers a new client and returns a channel for receiving events
func (h *SSEHub) Subscribe(clientID string) <-chan KpiEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan KpiEvent, 100)
	h.clients[clientID] = ch
	return ch
}

// Unsubscribe removes a client from the hub
func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish broadcasts an event to all connected clients. Slow clients miss it.
func (h *SSEHub) Publish(event KpiEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var globalSSEHub *SSEHub
var sseHubOnce sync.Once

// GetSSEHub returns the global SSE hub singleton
func GetSSEHub() *SSEHub {
	sseHubOnce.Do(func() {
		globalSSEHub = NewSSEHub()
	})
	return globalSSEHub
}

// PublishReportEvent announces a generated or re-stated weekly report.
func PublishReportEvent(kind string, r *models.WeeklyKpiReport) {
	GetSSEHub().Publish(KpiEvent{
		Kind:       kind,
		ID:         r.ID,
		ProjectID:  r.ProjectID,
		WeekNumber: r.WeekNumber,
		ReportYear: r.ReportYear,
		Status:     string(r.Status),
		TF:         r.TF,
		TG:         r.TG,
	})
}

// PublishDeviationEvent announces a deviation whose status changed.
func PublishDeviationEvent(d *models.DeviationReport) {
	GetSSEHub().Publish(KpiEvent{
		Kind:      EventDeviation,
		ID:        d.ID,
		ProjectID: d.ProjectID,
		Status:    string(d.Status),
		Pinned:    d.Pinned,
	})
}

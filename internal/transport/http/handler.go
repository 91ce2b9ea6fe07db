// Package httptransport implements the HTTP transport layer
// for invoice emission.
package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"
	gqlhandler "github.com/graphql-go/handler"
	"github.com/rs/cors"
)

type stepCounter interface {
	Running() int64
	Failed() int64
}

type slotCounter interface {
	InUse() int
	Cap() int
}

// Health is the body of GET /healthz.
type Health struct {
	Status       string `json:"status"`
	RunningSteps int64  `json:"running_steps"`
	FailedSteps  int64  `json:"failed_steps"`
	InFlight     int    `json:"in_flight"`
	Capacity     int    `json:"capacity"`
}

// Handler serves the health endpoint.
type Handler struct {
	steps stepCounter
	slots slotCounter
}

// New returns a Handler reporting from steps and slots.
//
// It panics if either is nil.
func New(steps stepCounter, slots slotCounter) *Handler {
	if steps == nil || slots == nil {
		panic("httptransport.New: nil step or slot counter")
	}
	return &Handler{steps: steps, slots: slots}
}

// HandleHealth reports liveness and current load.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, Health{
		Status:       "ok",
		RunningSteps: h.steps.Running(),
		FailedSteps:  h.steps.Failed(),
		InFlight:     h.slots.InUse(),
		Capacity:     h.slots.Cap(),
	})
}

// Routes mounts the GraphQL endpoint at /graphql and health at /healthz.
// The GraphQL endpoint accepts cross-origin requests from allowedOrigins;
// an empty list allows every origin.
func Routes(schema *graphql.Schema, h *Handler, allowedOrigins []string, playground bool) *http.ServeMux {
	gql := gqlhandler.New(&gqlhandler.Config{
		Schema:     schema,
		Pretty:     true,
		Playground: playground,
	})

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	mux := http.NewServeMux()
	mux.Handle("/graphql", c.Handler(gql))
	mux.HandleFunc("/healthz", h.HandleHealth)
	return mux
}

// writeJSON writes v as a JSON response with the given status code.
// The Content-Type is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

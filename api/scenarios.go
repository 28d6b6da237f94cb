/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  data for demos. Each scenario creates resources, calendars, users and
  slot requests that exercise a specific rule of the booking engine.

AVAILABLE SCENARIOS:
  gpu-lab:      Two calendars, funded and unfunded requests
  contention:   Competing pending requests, one already approved
  ongoing:      Approved request running right now (archive is blocked)

HOW SCENARIOS WORK:
  1. Reset database (admin accounts survive)
  2. Create resources and calendars
  3. Create users with starting balances
  4. Create slot requests relative to the current hour
  5. Apply admin decisions

  Everything goes through booking.Service, so balances and statuses are
  what a real client would have produced.

USAGE VIA API:
  POST /api/admin/scenarios/load
  {"scenario_id": "contention"}

NOTE:
  Routes exist only in dev mode. Demo users share the password
  DemoPassword.

SEE ALSO:
  - server.go: DevMode route gate
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/slot-engine/booking"
)

// DemoPassword is the password of every scenario user.
const DemoPassword = "demo-password"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, s *seeder) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "gpu-lab",
			Name:        "GPU Lab",
			Description: "Two calendars; alice holds a pending booking, bob could not afford his and got an invalid request",
		},
		load: loadGPULabScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "contention",
			Name:        "Contention",
			Description: "Three pending requests compete for the same window after one was approved",
		},
		load: loadContentionScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "ongoing",
			Name:        "Ongoing Booking",
			Description: "An approved booking is running now; archiving or deleting its calendar fails",
		},
		load: loadOngoingScenario,
	},
}

// ListScenarios returns available scenarios.
// GET /api/admin/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	type listing struct {
		Scenarios []ScenarioDTO `json:"scenarios"`
		Current   string        `json:"current,omitempty"`
	}
	out := listing{Scenarios: make([]ScenarioDTO, len(scenarios)), Current: current}
	for i, s := range scenarios {
		out.Scenarios[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, out)
}

// LoadScenario resets the data and seeds one scenario.
// POST /api/admin/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var chosen *scenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			chosen = &scenarios[i]
		}
	}
	if chosen == nil {
		v := &booking.ValidationError{}
		v.Add("scenario_id", "unknown scenario")
		writeError(w, r, v)
		return
	}
	if h.store == nil {
		writeStatus(w, http.StatusServiceUnavailable, "scenarios are not available")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.loadScenario(r.Context(), *chosen); err != nil {
		writeError(w, r, err)
		return
	}
	h.currentScenario = chosen.ID

	requestLogger(r).InfoContext(r.Context(), "scenario loaded", "scenario", chosen.ID)
	writeJSON(w, http.StatusOK, chosen.ScenarioDTO)
}

func (h *Handler) loadScenario(ctx context.Context, sc scenario) error {
	if err := h.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	return sc.load(ctx, &seeder{svc: h.svc, base: h.svc.Now().Truncate(time.Hour)})
}

// =============================================================================
// SEEDER
// =============================================================================

// seeder wraps the service calls scenarios need. base is the current hour.
type seeder struct {
	svc  *booking.Service
	base time.Time
}

func (s *seeder) hour(offset int) time.Time {
	return s.base.Add(time.Duration(offset) * time.Hour)
}

func (s *seeder) calendar(ctx context.Context, name, model string, typ booking.ResourceType, cost int) (booking.Calendar, error) {
	res, err := s.svc.CreateResource(ctx, booking.CreateResourceInput{
		Model:        model,
		Serial:       "SN-" + name,
		Manufacturer: "Demo Systems",
		Type:         typ,
	})
	if err != nil {
		return booking.Calendar{}, err
	}
	return s.svc.CreateCalendar(ctx, booking.CreateCalendarInput{ResourceID: res.ID, Name: name, TokenCostPerHour: &cost})
}

func (s *seeder) user(ctx context.Context, username string, tokens int) (booking.User, error) {
	return s.svc.CreateUser(ctx, booking.CreateUserInput{
		Username: username,
		Email:    username + "@demo.local",
		Name:     username,
		Surname:  "Demo",
		Password: DemoPassword,
		Tokens:   &tokens,
	})
}

// request books hours [from, to) relative to base.
func (s *seeder) request(ctx context.Context, u booking.User, c booking.Calendar, title string, from, to int) (booking.SlotRequest, error) {
	created, err := s.svc.CreateSlotRequest(ctx, u.ID, booking.CreateSlotInput{
		CalendarID: c.ID,
		Title:      title,
		Reason:     "Demo workload: " + title,
		Start:      s.hour(from),
		End:        s.hour(to),
	})
	return created.Request, err
}

func (s *seeder) approve(ctx context.Context, r booking.SlotRequest) error {
	_, err := s.svc.UpdateRequestStatus(ctx, r.ID, booking.StatusDecision{Approve: true})
	return err
}

func (s *seeder) refuse(ctx context.Context, r booking.SlotRequest, reason string) error {
	_, err := s.svc.UpdateRequestStatus(ctx, r.ID, booking.StatusDecision{RefusalReason: reason})
	return err
}

// =============================================================================
// LOADERS
// =============================================================================

func loadGPULabScenario(ctx context.Context, s *seeder) error {
	gpu, err := s.calendar(ctx, "gpu-a100", "A100 80GB", booking.ResourceGPU, 4)
	if err != nil {
		return err
	}
	cpu, err := s.calendar(ctx, "cpu-epyc", "EPYC 9654", booking.ResourceCPU, 1)
	if err != nil {
		return err
	}
	alice, err := s.user(ctx, "alice", 100)
	if err != nil {
		return err
	}
	bob, err := s.user(ctx, "bob", 5)
	if err != nil {
		return err
	}

	// alice: 6h * 4 = 24 tokens, pending.
	if _, err := s.request(ctx, alice, gpu, "Fine-tune LLM", 48, 54); err != nil {
		return err
	}
	// alice: 10h * 1 = 10 tokens, then approved.
	batch, err := s.request(ctx, alice, cpu, "Nightly batch", 72, 82)
	if err != nil {
		return err
	}
	if err := s.approve(ctx, batch); err != nil {
		return err
	}
	// bob: 2h * 4 = 8 tokens with 5 in the bank, invalid.
	_, err = s.request(ctx, bob, gpu, "Render job", 60, 62)
	return err
}

func loadContentionScenario(ctx context.Context, s *seeder) error {
	gpu, err := s.calendar(ctx, "gpu-h100", "H100 SXM", booking.ResourceGPU, 2)
	if err != nil {
		return err
	}
	var users []booking.User
	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		u, err := s.user(ctx, name, 60)
		if err != nil {
			return err
		}
		users = append(users, u)
	}

	// Three overlapping pending requests, then one separate slot approved.
	first, err := s.request(ctx, users[0], gpu, "Benchmark sweep", 30, 36)
	if err != nil {
		return err
	}
	if _, err := s.request(ctx, users[1], gpu, "Vision training", 32, 38); err != nil {
		return err
	}
	if _, err := s.request(ctx, users[2], gpu, "Inference tests", 34, 35); err != nil {
		return err
	}
	if err := s.approve(ctx, first); err != nil {
		return err
	}
	late, err := s.request(ctx, users[3], gpu, "Data export", 40, 42)
	if err != nil {
		return err
	}
	return s.refuse(ctx, late, "Maintenance window scheduled")
}

func loadOngoingScenario(ctx context.Context, s *seeder) error {
	gpu, err := s.calendar(ctx, "gpu-l40s", "L40S", booking.ResourceGPU, 3)
	if err != nil {
		return err
	}
	alice, err := s.user(ctx, "alice", 200)
	if err != nil {
		return err
	}
	running, err := s.request(ctx, alice, gpu, "Long training run", -2, 4)
	if err != nil {
		return err
	}
	if err := s.approve(ctx, running); err != nil {
		return err
	}
	_, err = s.request(ctx, alice, gpu, "Follow-up evaluation", 26, 28)
	return err
}

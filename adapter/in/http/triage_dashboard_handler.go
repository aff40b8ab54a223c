package http

import (
	"strings"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

const defaultHistoryLimit = 50

type DashboardHandler struct {
	dashboard in.DashboardService
	team      in.TeamService
}

func NewDashboardHandler(dashboard in.DashboardService, team in.TeamService) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		team:      team,
	}
}

// Register mounts the routes under /api/dashboard.
func (h *DashboardHandler) Register(r fiber.Router) {
	r.Get("/history", h.History)
	r.Get("/pending-reviews", h.PendingReviews)
	r.Post("/reviews/:id/complete", h.CompleteReview)
	r.Get("/stats", h.Stats)
	r.Get("/email-details/:id", h.EmailDetails)

	r.Get("/team-members", h.ListTeam)
	r.Post("/team-members", h.AddTeamMember)
	r.Put("/team-members/:id", h.UpdateTeamMember)
	r.Delete("/team-members/:id", h.DeleteTeamMember)
}

func (h *DashboardHandler) History(c *fiber.Ctx) error {
	history, err := h.dashboard.History(c.UserContext(), c.QueryInt("limit", defaultHistoryLimit))
	if err != nil {
		return err
	}
	if history == nil {
		history = []*domain.ClassificationRecord{}
	}
	return c.JSON(fiber.Map{"history": history})
}

func (h *DashboardHandler) PendingReviews(c *fiber.Ctx) error {
	reviews, err := h.dashboard.PendingReviews(c.UserContext())
	if err != nil {
		return err
	}
	if reviews == nil {
		reviews = []*domain.ReviewQueueEntry{}
	}
	return c.JSON(fiber.Map{"reviews": reviews})
}

func (h *DashboardHandler) CompleteReview(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.dashboard.CompleteReview(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Review completed"})
}

func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.dashboard.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (h *DashboardHandler) EmailDetails(c *fiber.Ctx) error {
	emailID := strings.TrimSpace(c.Params("id"))
	if emailID == "" {
		return apperr.MissingField("email_id")
	}
	details, err := h.dashboard.EmailDetails(c.UserContext(), emailID)
	if err != nil {
		return err
	}
	return c.JSON(details)
}

type teamMemberRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

func (r teamMemberRequest) toMember(id int64) *domain.StoredTeamMember {
	return &domain.StoredTeamMember{
		ID:         id,
		Name:       strings.TrimSpace(r.Name),
		Email:      strings.TrimSpace(r.Email),
		Department: strings.TrimSpace(r.Department),
	}
}

func (h *DashboardHandler) ListTeam(c *fiber.Ctx) error {
	members, err := h.team.List(c.UserContext())
	if err != nil {
		return err
	}
	if members == nil {
		members = []*domain.StoredTeamMember{}
	}
	return c.JSON(fiber.Map{"members": members})
}

func (h *DashboardHandler) AddTeamMember(c *fiber.Ctx) error {
	var req teamMemberRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	member := req.toMember(0)
	if err := h.team.Add(c.UserContext(), member); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":   "Team member added successfully",
		"member_id": member.ID,
		"member":    member,
	})
}

func (h *DashboardHandler) UpdateTeamMember(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req teamMemberRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	member := req.toMember(id)
	if err := h.team.Update(c.UserContext(), member); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Team member updated successfully",
		"member":  member,
	})
}

func (h *DashboardHandler) DeleteTeamMember(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.team.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Team member deleted successfully"})
}

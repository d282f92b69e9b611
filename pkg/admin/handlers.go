package admin

import (
	"github.com/gofiber/fiber/v2"

	"github.com/voxdial/scheduler/pkg/session"
	"github.com/voxdial/scheduler/pkg/workflow"
)

func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(s.runtime.Snapshot())
}

func (s *Server) handlePatchConfig(c *fiber.Ctx) error {
	var patch configPatch
	if err := c.BodyParser(&patch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid config patch: "+err.Error())
	}
	snap := s.runtime.Apply(patch.toConfigPatch())
	return c.JSON(snap)
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	return c.JSON(session.List())
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if !validID(id) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}
	sess, ok := session.Get(id)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no such session")
	}
	return c.JSON(sess.Snapshot(session.DetailFull))
}

func (s *Server) handlePauseSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if !validID(id) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}
	sess, ok := session.Get(id)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no such session")
	}
	sess.Pause()
	return c.JSON(sess.Snapshot(session.DetailSummary))
}

func (s *Server) handleResumeSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if !validID(id) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}
	sess, ok := session.Get(id)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no such session")
	}
	sess.Resume()
	return c.JSON(sess.Snapshot(session.DetailSummary))
}

func (s *Server) handleListWorkflows(c *fiber.Ctx) error {
	return c.JSON(s.workflows.Names())
}

func (s *Server) handleGetWorkflow(c *fiber.Ctx) error {
	name := c.Params("name")
	if !validID(name) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid workflow name")
	}
	w, ok := s.workflows.Get(name)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no such workflow")
	}
	return c.JSON(w)
}

func (s *Server) handlePutWorkflow(c *fiber.Ctx) error {
	name := c.Params("name")
	if !validID(name) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid workflow name")
	}
	var w workflow.Workflow
	if err := c.BodyParser(&w); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid workflow body: "+err.Error())
	}
	w.Name = name
	if err := s.workflows.Replace(&w); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(w)
}

func (s *Server) handlePatchWorkflowState(c *fiber.Ctx) error {
	name := c.Params("name")
	stateID := c.Params("stateID")
	if !validID(name) || !validID(stateID) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid workflow or state id")
	}

	var patch workflow.StatePatch
	if err := c.BodyParser(&patch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid state patch: "+err.Error())
	}
	if err := s.workflows.Patch(name, stateID, patch); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	w, _ := s.workflows.Get(name)
	return c.JSON(w)
}

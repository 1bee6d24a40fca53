package echoapi

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mkabeya/darasa/core/grading"
)

// gradingApi exposes the grading workflow: one server-side session per open
// grading view, addressed by a session ID handed out at creation.
type gradingApi struct {
	service *grading.Service

	mu       sync.Mutex
	sessions map[uuid.UUID]*grading.Session
}

func registerGradingAPI(g *echo.Group, svc *grading.Service) {
	api := &gradingApi{
		service:  svc,
		sessions: make(map[uuid.UUID]*grading.Session),
	}

	sg := g.Group("/grading/sessions")
	sg.POST("", api.sessionCreate)
	sg.GET("/:id", api.sessionRetrieve)
	sg.DELETE("/:id", api.sessionClose)
	sg.PUT("/:id/edit", api.sessionBeginEdit)
	sg.DELETE("/:id/edit", api.sessionEndEdit)
	sg.PUT("/:id/grade", api.sessionSetGrade)
	sg.PUT("/:id/feedback", api.sessionSetFeedback)
	sg.POST("/:id/save", api.sessionSave)
	sg.GET("/:id/records/:recordID/submission", api.sessionSubmission)
}

// Handlers

func (api *gradingApi) sessionCreate(ctx echo.Context) error {
	data := new(createSessionRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sess := api.service.NewSession()
	if err := sess.Load(ctx.Request().Context(), data.TaskID); err != nil {
		// no partial state: the session is discarded, the client stays out of the view
		return err
	}

	id := uuid.New()
	api.mu.Lock()
	api.sessions[id] = sess
	api.mu.Unlock()

	return ctx.JSON(http.StatusCreated, newSessionResponse(id, sess))
}

func (api *gradingApi) sessionRetrieve(ctx echo.Context) error {
	id, sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(id, sess))
}

func (api *gradingApi) sessionClose(ctx echo.Context) error {
	id, _, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	api.mu.Lock()
	delete(api.sessions, id)
	api.mu.Unlock()
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradingApi) sessionBeginEdit(ctx echo.Context) error {
	_, sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	data := new(beginEditRequest)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(); err != nil {
		return err
	}
	if err = sess.BeginEdit(data.RecordID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradingApi) sessionEndEdit(ctx echo.Context) error {
	_, sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	sess.EndEdit()
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradingApi) sessionSetGrade(ctx echo.Context) error {
	_, sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	data := new(setGradeRequest)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(); err != nil {
		return err
	}
	if err = sess.SetGrade(data.RecordID, data.Grade); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradingApi) sessionSetFeedback(ctx echo.Context) error {
	_, sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	data := new(setFeedbackRequest)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(); err != nil {
		return err
	}
	if err = sess.SetFeedback(data.RecordID, data.Feedback); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradingApi) sessionSave(ctx echo.Context) error {
	id, sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	if err = sess.Save(ctx.Request().Context()); err != nil {
		if err == grading.ErrNoPendingChanges {
			return ctx.JSON(http.StatusOK, echo.Map{"detail": "no changes to save"})
		}
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(id, sess))
}

func (api *gradingApi) sessionSubmission(ctx echo.Context) error {
	_, _, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	recordID, err := uuid.Parse(ctx.Param("recordID"))
	if err != nil {
		return errHttpNotFound
	}
	sub, err := api.service.SubmissionPreview(ctx.Request().Context(), recordID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *gradingApi) getSession(ctx echo.Context) (uuid.UUID, *grading.Session, error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return uuid.Nil, nil, errSessionNotFound
	}
	api.mu.Lock()
	sess, ok := api.sessions[id]
	api.mu.Unlock()
	if !ok {
		return uuid.Nil, nil, errSessionNotFound
	}
	return id, sess, nil
}

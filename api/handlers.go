package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"trellis-api/board"
	"trellis-api/domain"
	"trellis-api/rbac"
)

const mutationMaxSize = 64 * 1024 // 64 KiB

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, boards Boards, auth Authenticator, deduper Deduper, logger *log.Logger) {
	e.GET("/api/tasks", getTasks(boards, auth, logger))
	e.GET("/api/access", getAccess(auth))
	e.POST("/api/tasks", createTask(boards, auth, deduper, logger))
	e.PATCH("/api/tasks/:id", updateTask(boards, auth, deduper, logger))
	e.POST("/api/tasks/:id/move", moveTask(boards, auth, deduper, logger))
	e.DELETE("/api/tasks/:id", deleteTask(boards, auth, deduper, logger))
	e.GET("/healthz", healthz())
}

type errorResponse struct {
	Error string `json:"error"`
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

// taskMutationRequest is the body shared by create and update. The embedded
// field set leaves absent fields nil so partial updates stay partial.
type taskMutationRequest struct {
	OrgID     string `json:"orgId"`
	ProjectID string `json:"projectId"`
	domain.Fields
}

type moveTaskRequest struct {
	OrgID     string        `json:"orgId"`
	ProjectID string        `json:"projectId"`
	Status    domain.Status `json:"status"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getTasks(boards Boards, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger, "/api/tasks")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() { metrics.Log(c.Response().Status, err) }()

		authStart := time.Now()
		_, authErr := auth.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.JSON(http.StatusUnauthorized, errorResponse{Error: authErr.Error()})
			return err
		}

		projectID := c.QueryParam("projectId")
		if projectID == "" {
			metrics.SetErrorStage("missing_project")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "missing projectId"})
			return err
		}

		loadStart := time.Now()
		tasks, loadErr := boards.Board(projectID).Load(ctx)
		metrics.ObserveBoard(time.Since(loadStart))
		if loadErr != nil {
			metrics.SetErrorStage("gateway")
			c.Logger().Error(loadErr)
			err = c.JSON(http.StatusBadGateway, errorResponse{Error: loadErr.Error()})
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getAccess(auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := auth.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}
		access := rbac.DeriveAccess(p.RoleFor(c.QueryParam("orgId")))
		return c.JSON(http.StatusOK, access)
	}
}

func createTask(boards Boards, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger, "/api/tasks#create")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() { metrics.Log(c.Response().Status, err) }()

		p, authErr := authenticate(c, auth, metrics)
		if authErr != nil {
			err = c.JSON(http.StatusUnauthorized, errorResponse{Error: authErr.Error()})
			return err
		}

		var req taskMutationRequest
		if decodeErr := decodeMutation(c, &req); decodeErr != nil {
			metrics.SetErrorStage("invalid_body")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
			return err
		}
		if req.ProjectID == "" {
			metrics.SetErrorStage("missing_project")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "missing projectId"})
			return err
		}
		if req.Status == nil {
			metrics.SetErrorStage("validation")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "missing status"})
			return err
		}

		release, duplicate := claimIdempotency(ctx, deduper, c, p.UserID)
		if duplicate {
			metrics.SetErrorStage("duplicate")
			err = c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
			return err
		}

		b := boards.Board(req.ProjectID)
		if loadErr := b.EnsureLoaded(ctx); loadErr != nil {
			release()
			metrics.SetErrorStage("gateway")
			err = c.JSON(http.StatusBadGateway, errorResponse{Error: loadErr.Error()})
			return err
		}

		boardStart := time.Now()
		task, createErr := b.Create(ctx, p.RoleFor(req.OrgID), *req.Status, req.Fields)
		metrics.ObserveBoard(time.Since(boardStart))
		if createErr != nil {
			release()
			err = writeBoardError(c, metrics, createErr)
			return err
		}
		err = c.JSON(http.StatusCreated, task)
		return err
	}
}

func updateTask(boards Boards, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger, "/api/tasks/:id")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() { metrics.Log(c.Response().Status, err) }()

		p, authErr := authenticate(c, auth, metrics)
		if authErr != nil {
			err = c.JSON(http.StatusUnauthorized, errorResponse{Error: authErr.Error()})
			return err
		}

		var req taskMutationRequest
		if decodeErr := decodeMutation(c, &req); decodeErr != nil {
			metrics.SetErrorStage("invalid_body")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
			return err
		}
		if req.ProjectID == "" {
			metrics.SetErrorStage("missing_project")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "missing projectId"})
			return err
		}

		release, duplicate := claimIdempotency(ctx, deduper, c, p.UserID)
		if duplicate {
			metrics.SetErrorStage("duplicate")
			err = c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
			return err
		}

		b := boards.Board(req.ProjectID)
		if loadErr := b.EnsureLoaded(ctx); loadErr != nil {
			release()
			metrics.SetErrorStage("gateway")
			err = c.JSON(http.StatusBadGateway, errorResponse{Error: loadErr.Error()})
			return err
		}

		boardStart := time.Now()
		task, updateErr := b.Update(ctx, p.RoleFor(req.OrgID), c.Param("id"), req.Fields)
		metrics.ObserveBoard(time.Since(boardStart))
		if updateErr != nil {
			release()
			err = writeBoardError(c, metrics, updateErr)
			return err
		}
		err = c.JSON(http.StatusOK, task)
		return err
	}
}

func moveTask(boards Boards, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger, "/api/tasks/:id/move")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() { metrics.Log(c.Response().Status, err) }()

		p, authErr := authenticate(c, auth, metrics)
		if authErr != nil {
			err = c.JSON(http.StatusUnauthorized, errorResponse{Error: authErr.Error()})
			return err
		}

		var req moveTaskRequest
		if decodeErr := decodeMutation(c, &req); decodeErr != nil {
			metrics.SetErrorStage("invalid_body")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
			return err
		}
		if req.ProjectID == "" {
			metrics.SetErrorStage("missing_project")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "missing projectId"})
			return err
		}

		release, duplicate := claimIdempotency(ctx, deduper, c, p.UserID)
		if duplicate {
			metrics.SetErrorStage("duplicate")
			err = c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
			return err
		}

		b := boards.Board(req.ProjectID)
		if loadErr := b.EnsureLoaded(ctx); loadErr != nil {
			release()
			metrics.SetErrorStage("gateway")
			err = c.JSON(http.StatusBadGateway, errorResponse{Error: loadErr.Error()})
			return err
		}

		boardStart := time.Now()
		task, moveErr := b.Move(ctx, p.RoleFor(req.OrgID), c.Param("id"), req.Status)
		metrics.ObserveBoard(time.Since(boardStart))
		if moveErr != nil {
			release()
			err = writeBoardError(c, metrics, moveErr)
			return err
		}
		err = c.JSON(http.StatusOK, task)
		return err
	}
}

func deleteTask(boards Boards, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger, "/api/tasks/:id#delete")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() { metrics.Log(c.Response().Status, err) }()

		p, authErr := authenticate(c, auth, metrics)
		if authErr != nil {
			err = c.JSON(http.StatusUnauthorized, errorResponse{Error: authErr.Error()})
			return err
		}

		projectID := c.QueryParam("projectId")
		if projectID == "" {
			metrics.SetErrorStage("missing_project")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "missing projectId"})
			return err
		}

		release, duplicate := claimIdempotency(ctx, deduper, c, p.UserID)
		if duplicate {
			metrics.SetErrorStage("duplicate")
			err = c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
			return err
		}

		b := boards.Board(projectID)
		if loadErr := b.EnsureLoaded(ctx); loadErr != nil {
			release()
			metrics.SetErrorStage("gateway")
			err = c.JSON(http.StatusBadGateway, errorResponse{Error: loadErr.Error()})
			return err
		}

		boardStart := time.Now()
		deleteErr := b.Delete(ctx, p.RoleFor(c.QueryParam("orgId")), c.Param("id"))
		metrics.ObserveBoard(time.Since(boardStart))
		if deleteErr != nil {
			release()
			err = writeBoardError(c, metrics, deleteErr)
			return err
		}
		err = c.NoContent(http.StatusNoContent)
		return err
	}
}

func authenticate(c echo.Context, auth Authenticator, metrics *boardRequestMetrics) (Principal, error) {
	authStart := time.Now()
	p, err := auth.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	metrics.ObserveAuth(time.Since(authStart))
	if err != nil {
		metrics.SetErrorStage("auth")
	}
	return p, err
}

func decodeMutation(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, mutationMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// claimIdempotency records the request's Idempotency-Key, if any. It reports
// a replay as duplicate and returns a release func to call when the mutation
// fails so the client may retry with the same key.
func claimIdempotency(ctx context.Context, deduper Deduper, c echo.Context, userID string) (release func(), duplicate bool) {
	release = func() {}
	key := c.Request().Header.Get("Idempotency-Key")
	if key == "" || deduper == nil {
		return release, false
	}
	added, err := deduper.Add(ctx, userID, key)
	if err != nil {
		// Deduper unavailable: let the mutation through rather than fail it.
		c.Logger().Warnf("idempotency check failed: %v", err)
		return release, false
	}
	if !added {
		return release, true
	}
	return func() { _ = deduper.Remove(ctx, userID, key) }, false
}

func writeBoardError(c echo.Context, metrics *boardRequestMetrics, err error) error {
	var invalid domain.InvalidValueError
	var remote *board.RemoteError
	switch {
	case errors.Is(err, board.ErrNotPermitted):
		metrics.SetErrorStage("forbidden")
		return c.JSON(http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, board.ErrTaskNotFound):
		metrics.SetErrorStage("not_found")
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, board.ErrTaskBusy):
		metrics.SetErrorStage("busy")
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrEmptyTitle), errors.As(err, &invalid):
		metrics.SetErrorStage("validation")
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &remote):
		metrics.SetErrorStage("gateway")
		c.Logger().Error(err)
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		metrics.SetErrorStage("internal")
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

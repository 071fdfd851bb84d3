package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"deen-companion-backend/internal/model"
	"deen-companion-backend/internal/store"
	"deen-companion-backend/internal/timings"
)

type createTodoRequest struct {
	Title   string  `json:"title" binding:"required"`
	DueDate *string `json:"due_date"`
}

type patchTodoRequest struct {
	Title   *string `json:"title"`
	Done    *bool   `json:"done"`
	DueDate *string `json:"due_date"`
}

// validDueDate accepts nil, "" (clear) or a YYYY-MM-DD date.
func validDueDate(d *string) bool {
	if d == nil || *d == "" {
		return true
	}
	_, err := time.Parse(timings.DateLayout, *d)
	return err == nil
}

// ListTodos handles GET /api/todos.
func (h *Handler) ListTodos(c *gin.Context) {
	todos, err := h.store.ListTodos(c.Request.Context(), userID(c))
	if err != nil {
		internalError(c, err, "failed to list todos")
		return
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	c.JSON(http.StatusOK, todos)
}

// CreateTodo handles POST /api/todos.
func (h *Handler) CreateTodo(c *gin.Context) {
	var req createTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validDueDate(req.DueDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_date, use YYYY-MM-DD"})
		return
	}
	if req.DueDate != nil && *req.DueDate == "" {
		req.DueDate = nil
	}

	todo := &model.Todo{UserID: userID(c), Title: req.Title, DueDate: req.DueDate}
	if err := h.store.CreateTodo(c.Request.Context(), todo); err != nil {
		internalError(c, err, "failed to create todo")
		return
	}
	c.JSON(http.StatusCreated, todo)
}

// UpdateTodo handles PATCH /api/todos/:id.
func (h *Handler) UpdateTodo(c *gin.Context) {
	var req patchTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Title == nil && req.Done == nil && req.DueDate == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}
	if req.Title != nil && *req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title must not be empty"})
		return
	}
	if !validDueDate(req.DueDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_date, use YYYY-MM-DD"})
		return
	}

	todo, err := h.store.UpdateTodo(c.Request.Context(), userID(c), c.Param("id"), store.TodoPatch{
		Title:   req.Title,
		Done:    req.Done,
		DueDate: req.DueDate,
	})
	if err != nil {
		notFoundOr(c, err, "todo")
		return
	}
	c.JSON(http.StatusOK, todo)
}

// DeleteTodo handles DELETE /api/todos/:id.
func (h *Handler) DeleteTodo(c *gin.Context) {
	if err := h.store.DeleteTodo(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		notFoundOr(c, err, "todo")
		return
	}
	c.Status(http.StatusNoContent)
}

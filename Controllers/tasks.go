package Controllers

import (
	"errors"
	"strconv"
	"time"

	"Beacon/Distribution"
	"Beacon/Models"
	"Beacon/TaskEngine"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// TaskHandler exposes the distribution and verification engine over HTTP.
type TaskHandler struct {
	DB     *gorm.DB
	Engine *TaskEngine.Engine
}

func NewTaskHandler(db *gorm.DB, engine *TaskEngine.Engine) *TaskHandler {
	return &TaskHandler{DB: db, Engine: engine}
}

// engineError maps the engine's business-rule failures to HTTP statuses.
// Each kind gets its own message; hierarchy failures never expose levels.
func engineError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, TaskEngine.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Not found",
		})
	case errors.Is(err, TaskEngine.ErrInvalidInput), errors.Is(err, Distribution.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	case errors.Is(err, Distribution.ErrNoTargets):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Distribution resolved to no target stores",
		})
	case errors.Is(err, TaskEngine.ErrAlreadyCompleted),
		errors.Is(err, TaskEngine.ErrAlreadyPendingVerification),
		errors.Is(err, TaskEngine.ErrAlreadyStarted),
		errors.Is(err, TaskEngine.ErrNotPendingVerification),
		errors.Is(err, TaskEngine.ErrMissingCompleter),
		errors.Is(err, TaskEngine.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": err.Error(),
		})
	case errors.Is(err, TaskEngine.ErrInsufficientRole):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "You are not permitted to perform this action",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}
}

type CreateTaskRequest struct {
	Title            string     `json:"title" validate:"required"`
	Description      string     `json:"description"`
	Priority         string     `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH URGENT"`
	DueTime          *time.Time `json:"due_time"`
	DistributionType string     `json:"distribution_type" validate:"required,oneof=ALL_STORES BY_REGION SPECIFIC_STORES"`
	RegionIDs        []uint     `json:"region_ids"`
	StoreIDs         []uint     `json:"store_ids"`
}

// CreateTask fans a new task out to its resolved stores.
func (h *TaskHandler) CreateTask(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(Models.User)

	var req CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationErrors(err),
		})
	}

	task, err := h.Engine.CreateTaskWithDistribution(c.UserContext(), user.CompanyID, TaskEngine.TaskSpec{
		Title:            req.Title,
		Description:      req.Description,
		Priority:         req.Priority,
		DueTime:          req.DueTime,
		CreatedByID:      user.ID,
		CreatedByRole:    user.RoleKey,
		DistributionType: req.DistributionType,
		RegionIDs:        req.RegionIDs,
		StoreIDs:         req.StoreIDs,
	})
	if err != nil {
		return engineError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// GetTasks lists the tenant's tasks with their assignments.
func (h *TaskHandler) GetTasks(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(Models.User)

	query := h.DB.Where("company_id = ?", user.CompanyID).Preload("Assignments")
	if status := c.Query("status"); status != "" {
		query = query.Where("id IN (?)", h.DB.Model(&Models.TaskAssignment{}).
			Select("task_id").Where("company_id = ? AND status = ?", user.CompanyID, status))
	}

	var tasks []Models.Task
	if err := query.Order("id DESC").Find(&tasks).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to fetch tasks",
		})
	}
	return c.JSON(tasks)
}

// GetTask returns one task with its assignments.
func (h *TaskHandler) GetTask(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(Models.User)
	taskID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid task id",
		})
	}

	var task Models.Task
	if err := h.DB.Where("id = ? AND company_id = ?", taskID, user.CompanyID).
		Preload("Assignments").First(&task).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Not found",
		})
	}
	return c.JSON(task)
}

// StartAssignment marks the store's copy of a task as in progress.
func (h *TaskHandler) StartAssignment(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(Models.User)
	taskID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid task id"})
	}
	storeID, err := c.ParamsInt("storeId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid store id"})
	}

	assignment, err := h.Engine.StartAssignment(c.UserContext(), user.CompanyID, uint(taskID), uint(storeID), user.ID, user.RoleKey)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(assignment)
}

type CompleteAssignmentRequest struct {
	Notes     string   `json:"notes"`
	PhotoURLs []string `json:"photo_urls"`
}

// CompleteAssignment submits the store's work. Whether it lands in
// PENDING_VERIFICATION or auto-verifies depends on the caller's role.
func (h *TaskHandler) CompleteAssignment(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(Models.User)
	taskID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid task id"})
	}
	storeID, err := c.ParamsInt("storeId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid store id"})
	}

	var req CompleteAssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	assignment, err := h.Engine.CompleteAssignment(c.UserContext(), user.CompanyID, uint(taskID), uint(storeID), TaskEngine.CompletionPayload{
		UserID:    user.ID,
		RoleKey:   user.RoleKey,
		Notes:     req.Notes,
		PhotoURLs: req.PhotoURLs,
	})
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(assignment)
}

type VerifyAssignmentRequest struct {
	Notes string `json:"notes"`
}

// VerifyAssignment approves a pending submission.
func (h *TaskHandler) VerifyAssignment(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(Models.User)
	assignmentID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid assignment id"})
	}

	// Notes are optional, an empty body is fine.
	var req VerifyAssignmentRequest
	_ = c.BodyParser(&req)

	assignment, err := h.Engine.VerifyAssignment(c.UserContext(), user.CompanyID, uint(assignmentID), TaskEngine.VerifierPayload{
		UserID:  user.ID,
		RoleKey: user.RoleKey,
	}, req.Notes)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(assignment)
}

type RejectAssignmentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// RejectAssignment rejects a pending submission with a mandatory reason.
func (h *TaskHandler) RejectAssignment(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(Models.User)
	assignmentID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid assignment id"})
	}

	var req RejectAssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationErrors(err),
		})
	}

	assignment, err := h.Engine.RejectAssignment(c.UserContext(), user.CompanyID, uint(assignmentID), TaskEngine.VerifierPayload{
		UserID:  user.ID,
		RoleKey: user.RoleKey,
	}, req.Reason)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(assignment)
}

// PendingVerifications lists submissions the caller's role may decide on,
// optionally narrowed to one store via ?store_id=.
func (h *TaskHandler) PendingVerifications(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(Models.User)

	var storeID *uint
	if raw := c.Query("store_id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid store id"})
		}
		id := uint(parsed)
		storeID = &id
	}

	pending, err := h.Engine.PendingVerifications(c.UserContext(), user.CompanyID, user.RoleKey, storeID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(pending)
}

// AssignmentHistory returns the verification ledger of one assignment.
func (h *TaskHandler) AssignmentHistory(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(Models.User)
	assignmentID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid assignment id"})
	}

	history, err := h.Engine.AssignmentHistory(c.UserContext(), user.CompanyID, uint(assignmentID))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(history)
}

package records

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler serves the items and events collections.
type Handler struct {
	items  *Store
	events *Store
	logger *slog.Logger
}

// NewHandler creates a Handler with empty collections.
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		items:  NewStore(),
		events: NewStore(),
		logger: logger,
	}
}

// Register wires the routes onto e and installs the request validator.
func (h *Handler) Register(e *echo.Echo) {
	e.Validator = NewValidator()

	e.GET("/", h.Root)

	e.POST("/items/", h.CreateItem)
	e.GET("/items/", h.ListItems)

	e.POST("/events/", h.CreateEvent)
	e.GET("/events/", h.ListEvents)
	e.PUT("/events/:id", h.UpdateEvent)
	e.DELETE("/events/:id", h.DeleteEvent)
}

// Root answers the service greeting.
func (h *Handler) Root(c echo.Context) error {
	h.logger.Info("Root endpoint called")
	return c.JSON(http.StatusOK, map[string]string{"message": "Welcome to the main service"})
}

// CreateItem validates and stores an item, echoing it back.
func (h *Handler) CreateItem(c echo.Context) error {
	r, err := bindRecord(c)
	if err != nil {
		return err
	}
	h.logger.Info("Creating item: " + r.String())
	h.items.Append(r)
	return c.JSON(http.StatusOK, r)
}

// ListItems returns every stored item.
func (h *Handler) ListItems(c echo.Context) error {
	h.logger.Info("Fetching all items")
	return c.JSON(http.StatusOK, h.items.List())
}

// CreateEvent validates and stores an event, echoing it back.
func (h *Handler) CreateEvent(c echo.Context) error {
	r, err := bindRecord(c)
	if err != nil {
		return err
	}
	h.logger.Info("Creating event: " + r.String())
	h.events.Append(r)
	return c.JSON(http.StatusOK, r)
}

// ListEvents returns every stored event.
func (h *Handler) ListEvents(c echo.Context) error {
	h.logger.Info("Fetching all events")
	return c.JSON(http.StatusOK, h.events.List())
}

// UpdateEvent replaces the event at position :id. A missing event is
// reported in the body with status 200.
func (h *Handler) UpdateEvent(c echo.Context) error {
	idx, err := eventID(c)
	if err != nil {
		return err
	}
	r, err := bindRecord(c)
	if err != nil {
		return err
	}
	h.logger.Info("Updating event " + strconv.Itoa(idx) + " with " + r.String())
	if !h.events.Replace(idx, r) {
		return c.JSON(http.StatusOK, map[string]string{"error": "Event not found"})
	}
	return c.JSON(http.StatusOK, r)
}

// DeleteEvent removes the event at position :id. Negative positions are
// not found; they never count from the end.
func (h *Handler) DeleteEvent(c echo.Context) error {
	idx, err := eventID(c)
	if err != nil {
		return err
	}
	h.logger.Info("Deleting event " + strconv.Itoa(idx))
	if !h.events.Delete(idx) {
		return c.JSON(http.StatusOK, map[string]string{"error": "Event not found"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Event deleted"})
}

func bindRecord(c echo.Context) (Record, error) {
	var r Record
	if err := c.Bind(&r); err != nil {
		return Record{}, unprocessable(err)
	}
	if err := c.Validate(&r); err != nil {
		return Record{}, unprocessable(err)
	}
	return r, nil
}

func eventID(c echo.Context) (int, error) {
	idx, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]any{
			"detail": []FieldError{{
				Loc:  []string{"path", "event_id"},
				Msg:  "value is not a valid integer",
				Type: "type_error.integer",
			}},
		})
	}
	return idx, nil
}

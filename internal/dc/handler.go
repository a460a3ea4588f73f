package dc

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/edusales-crm/edusales-crm/internal/orders"
	"github.com/edusales-crm/edusales-crm/internal/platform/httpx"
	"github.com/edusales-crm/edusales-crm/internal/sales"
	"github.com/edusales-crm/edusales-crm/internal/shared"
)

// Handler manages delivery challan endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers challan routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/raise", h.raise)

	// Stats fans out one count query per status, so it gets a tighter
	// per-IP limit than the global one.
	r.With(httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
		Get("/stats", h.stats)

	// Status buckets used by the role dashboards.
	r.Get("/po-submitted", h.listStatus(StatusPOSubmitted))
	r.Get("/sent-to-manager", h.listStatus(StatusSentToManager))
	r.Get("/pending-warehouse", h.listStatus(StatusPendingDC))
	r.Get("/hold", h.listStatus(StatusHold))
	r.Get("/completed", h.listStatus(StatusCompleted))

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Post("/submit-po", h.submitPO)
		r.Post("/review", h.reviewPO)
		r.Post("/request-warehouse", h.requestWarehouse)
		r.Post("/warehouse-process", h.processWarehouse)
		r.Post("/hold", h.hold)
		r.Post("/delivery-submit", h.submitDelivery)
		r.Post("/complete", h.complete)
	})
}

func dcID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromQuery(r.URL.Query())
	p := shared.NewPagination(page, perPage, 0)
	var status *Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := Status(raw)
		status = &s
	}
	dcs, err := h.service.List(r.Context(), status, p.PerPage, p.Offset())
	if err != nil {
		h.respondErr(w, "list dcs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"dcs": dcs, "page": p.Page, "per_page": p.PerPage})
}

func (h *Handler) listStatus(status Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, perPage := shared.PageFromQuery(r.URL.Query())
		p := shared.NewPagination(page, perPage, 0)
		dcs, err := h.service.List(r.Context(), &status, p.PerPage, p.Offset())
		if err != nil {
			h.respondErr(w, "list dcs by status", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"dcs": dcs, "status": status, "page": p.Page, "per_page": p.PerPage})
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := dcID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid dc id")
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get dc", err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.respondErr(w, "dc stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) raise(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := decodeWithActor[RaiseRequest](h, w, r)
	if !ok {
		return
	}
	result, err := h.service.Raise(r.Context(), req, actor)
	if err != nil {
		h.respondErr(w, "raise dc", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) submitPO(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "submit po", func(id int64, actor shared.Actor) (Result, error) {
		req, ok := decodeBody[SubmitPORequest](h, w, r)
		if !ok {
			return Result{}, errHandled
		}
		return h.service.SubmitPO(r.Context(), id, req, actor)
	})
}

func (h *Handler) reviewPO(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "review po", func(id int64, actor shared.Actor) (Result, error) {
		req, ok := decodeBody[ReviewPORequest](h, w, r)
		if !ok {
			return Result{}, errHandled
		}
		return h.service.ReviewPO(r.Context(), id, req, actor)
	})
}

func (h *Handler) requestWarehouse(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "request warehouse", func(id int64, actor shared.Actor) (Result, error) {
		req, ok := decodeBody[RequestWarehouseRequest](h, w, r)
		if !ok {
			return Result{}, errHandled
		}
		return h.service.RequestFromWarehouse(r.Context(), id, req, actor)
	})
}

func (h *Handler) processWarehouse(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "process warehouse", func(id int64, actor shared.Actor) (Result, error) {
		req, ok := decodeBody[ProcessRequest](h, w, r)
		if !ok {
			return Result{}, errHandled
		}
		return h.service.ProcessInWarehouse(r.Context(), id, req, actor)
	})
}

func (h *Handler) hold(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "hold", func(id int64, actor shared.Actor) (Result, error) {
		req, ok := decodeBody[HoldRequest](h, w, r)
		if !ok {
			return Result{}, errHandled
		}
		return h.service.Hold(r.Context(), id, req, actor)
	})
}

func (h *Handler) submitDelivery(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "submit delivery", func(id int64, actor shared.Actor) (Result, error) {
		req, ok := decodeBody[SubmitDeliveryRequest](h, w, r)
		if !ok {
			return Result{}, errHandled
		}
		return h.service.SubmitDelivery(r.Context(), id, req, actor)
	})
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "complete delivery", func(id int64, actor shared.Actor) (Result, error) {
		return h.service.CompleteDelivery(r.Context(), id, actor)
	})
}

// errHandled signals the callback already wrote the response.
var errHandled = errors.New("response already written")

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(id int64, actor shared.Actor) (Result, error)) {
	actor, err := shared.RequireActor(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
		return
	}
	id, ok := dcID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid dc id")
		return
	}
	result, err := fn(id, actor)
	if err != nil {
		if !errors.Is(err, errHandled) {
			h.respondErr(w, op, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func decodeBody[T any](h *Handler, w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func decodeWithActor[T any](h *Handler, w http.ResponseWriter, r *http.Request) (shared.Actor, T, bool) {
	var req T
	actor, err := shared.RequireActor(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
		return actor, req, false
	}
	req, ok := decodeBody[T](h, w, r)
	return actor, req, ok
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound),
		errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, sales.ErrSaleNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotOwner):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrOriginRequired),
		errors.Is(err, ErrNoEmployee),
		errors.Is(err, ErrProofRequired),
		errors.Is(err, ErrQuantityRequired),
		errors.Is(err, ErrNegativeQuantity),
		errors.Is(err, ErrDeliveryNotPending),
		errors.Is(err, ErrLineNotFound):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		var precondition *PreconditionError
		if !errors.As(err, &precondition) {
			h.logger.Error(op, slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}

package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/school-scheduler/internal/application"
)

type directoryService interface {
	CreateSchool(ctx context.Context, params application.CreateSchoolParams) (application.School, error)
	GetSchool(ctx context.Context, id string) (application.School, error)
	CreateClass(ctx context.Context, params application.CreateClassParams) (application.Class, error)
	CreateSubject(ctx context.Context, params application.CreateSubjectParams) (application.Subject, error)
	CreateTeacher(ctx context.Context, params application.CreateTeacherParams) (application.Teacher, error)
	ListClasses(ctx context.Context, schoolID string) ([]application.Class, error)
	ListSubjects(ctx context.Context, schoolID string) ([]application.Subject, error)
	ListTeachers(ctx context.Context, schoolID string) ([]application.Teacher, error)
}

// DirectoryHandler maintains the schools, classes, subjects and teachers
// events refer to.
type DirectoryHandler struct {
	service   directoryService
	validator *requestValidator
	responder responder
	logger    *slog.Logger
}

func NewDirectoryHandler(service directoryService, logger *slog.Logger) *DirectoryHandler {
	base := defaultLogger(logger)
	return &DirectoryHandler{service: service, validator: newRequestValidator(), responder: newResponder(base), logger: base}
}

// decode reads and validates a JSON body. It writes the error response and
// returns false on failure.
func (h *DirectoryHandler) decode(w http.ResponseWriter, r *http.Request, operation string, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		handlerLogger(r.Context(), h.logger, "DirectoryHandler", operation, "error_kind", errorKindBadRequest).
			WarnContext(r.Context(), "failed to decode request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return false
	}
	if fields := h.validator.check(dst); fields != nil {
		h.responder.writeValidation(r.Context(), w, fields)
		return false
	}
	return true
}

func (h *DirectoryHandler) available(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *DirectoryHandler) CreateSchool(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var req schoolRequest
	if !h.decode(w, r, "CreateSchool", &req) {
		return
	}
	school, err := h.service.CreateSchool(r.Context(), application.CreateSchoolParams{
		Name:     strings.TrimSpace(req.Name),
		TimeZone: strings.TrimSpace(req.TimeZone),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, schoolResponse{School: toSchoolDTO(school)})
}

func (h *DirectoryHandler) GetSchool(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	id, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSchoolID)
		return
	}
	school, err := h.service.GetSchool(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, schoolResponse{School: toSchoolDTO(school)})
}

func (h *DirectoryHandler) CreateClass(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var req namedRequest
	if !h.decode(w, r, "CreateClass", &req) {
		return
	}
	schoolID, _ := SchoolIDFromContext(r.Context())
	class, err := h.service.CreateClass(r.Context(), application.CreateClassParams{SchoolID: schoolID, Name: req.Name})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, namedDTO{
		ID: class.ID, SchoolID: class.SchoolID, Name: class.Name, CreatedAt: stamp(class.CreatedAt),
	})
}

func (h *DirectoryHandler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var req namedRequest
	if !h.decode(w, r, "CreateSubject", &req) {
		return
	}
	schoolID, _ := SchoolIDFromContext(r.Context())
	subject, err := h.service.CreateSubject(r.Context(), application.CreateSubjectParams{SchoolID: schoolID, Name: req.Name})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, namedDTO{
		ID: subject.ID, SchoolID: subject.SchoolID, Name: subject.Name, CreatedAt: stamp(subject.CreatedAt),
	})
}

func (h *DirectoryHandler) CreateTeacher(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var req teacherRequest
	if !h.decode(w, r, "CreateTeacher", &req) {
		return
	}
	schoolID, _ := SchoolIDFromContext(r.Context())
	teacher, err := h.service.CreateTeacher(r.Context(), application.CreateTeacherParams{
		SchoolID: schoolID,
		Name:     req.Name,
		Email:    req.Email,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toTeacherDTO(teacher))
}

func (h *DirectoryHandler) ListClasses(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	schoolID, _ := SchoolIDFromContext(r.Context())
	classes, err := h.service.ListClasses(r.Context(), schoolID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]namedDTO, 0, len(classes))
	for _, c := range classes {
		out = append(out, namedDTO{ID: c.ID, SchoolID: c.SchoolID, Name: c.Name, CreatedAt: stamp(c.CreatedAt)})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string][]namedDTO{"classes": out})
}

func (h *DirectoryHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	schoolID, _ := SchoolIDFromContext(r.Context())
	subjects, err := h.service.ListSubjects(r.Context(), schoolID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]namedDTO, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, namedDTO{ID: s.ID, SchoolID: s.SchoolID, Name: s.Name, CreatedAt: stamp(s.CreatedAt)})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string][]namedDTO{"subjects": out})
}

func (h *DirectoryHandler) ListTeachers(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	schoolID, _ := SchoolIDFromContext(r.Context())
	teachers, err := h.service.ListTeachers(r.Context(), schoolID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]teacherDTO, 0, len(teachers))
	for _, t := range teachers {
		out = append(out, toTeacherDTO(t))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string][]teacherDTO{"teachers": out})
}

type schoolRequest struct {
	Name     string `json:"name" validate:"required,notblank,max=200"`
	TimeZone string `json:"time_zone" validate:"omitempty,timezone"`
}

type namedRequest struct {
	Name string `json:"name" validate:"required,notblank,max=200"`
}

type teacherRequest struct {
	Name  string `json:"name" validate:"required,notblank,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
}

type schoolResponse struct {
	School schoolDTO `json:"school"`
}

type schoolDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TimeZone  string `json:"time_zone"`
	CreatedAt string `json:"created_at"`
}

func toSchoolDTO(school application.School) schoolDTO {
	return schoolDTO{ID: school.ID, Name: school.Name, TimeZone: school.TimeZone, CreatedAt: stamp(school.CreatedAt)}
}

type namedDTO struct {
	ID        string `json:"id"`
	SchoolID  string `json:"school_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type teacherDTO struct {
	ID        string `json:"id"`
	SchoolID  string `json:"school_id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toTeacherDTO(t application.Teacher) teacherDTO {
	return teacherDTO{ID: t.ID, SchoolID: t.SchoolID, Name: t.Name, Email: t.Email, CreatedAt: stamp(t.CreatedAt)}
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

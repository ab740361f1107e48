package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
)

const maxBodySize = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// A missing maxImages means harvest.DefaultMaxImages.
type harvestRequest struct {
	Address   string `json:"address"`
	MaxImages *int   `json:"maxImages"`
}

type harvestResponse struct {
	ImageURLs        []string `json:"imageUrls"`
	Mode             string   `json:"mode"`
	LocationsVisited int      `json:"locationsVisited"`
	ElapsedMS        int64    `json:"elapsedMs"`
}

type createJobRequest struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	MaxImages *int   `json:"maxImages"`
}

type createJobResponse struct {
	ID string `json:"id"`
}

type jobDTO struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Date      time.Time  `json:"date"`
	Status    string     `json:"status"`
	Address   string     `json:"address"`
	MaxImages int        `json:"maxImages"`
	Result    *JobResult `json:"result,omitempty"`
}

func toJobDTO(j Job) jobDTO {
	return jobDTO{
		ID:        j.ID,
		Name:      j.Name,
		Date:      j.Date,
		Status:    j.Status,
		Address:   j.Data.Address,
		MaxImages: j.Data.MaxImages,
		Result:    j.Result,
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) harvest(w http.ResponseWriter, r *http.Request) {
	if s.harvester == nil {
		renderError(w, http.StatusServiceUnavailable, errors.New("harvesting is not enabled"))

		return
	}

	var req harvestRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderError(w, http.StatusUnprocessableEntity, err)

		return
	}

	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" {
		renderError(w, http.StatusUnprocessableEntity, errors.New("missing address"))

		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.harvestTimeout)
	defer cancel()

	resp, err := s.harvester.Harvest(ctx, harvest.Request{
		Address:   req.Address,
		MaxImages: lo.FromPtrOr(req.MaxImages, harvest.DefaultMaxImages),
	})

	switch {
	case errors.Is(err, harvest.ErrBusy):
		renderError(w, http.StatusConflict, err)
	case err != nil:
		s.log.Error("harvest failed", zap.String("address", req.Address), zap.Error(err))
		renderError(w, http.StatusInternalServerError, err)
	default:
		renderJSON(w, http.StatusOK, harvestResponse{
			ImageURLs:        lo.Ternary(resp.ImageURLs == nil, []string{}, resp.ImageURLs),
			Mode:             string(resp.Mode),
			LocationsVisited: resp.LocationsVisited,
			ElapsedMS:        resp.Elapsed.Milliseconds(),
		})
	}
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderError(w, http.StatusUnprocessableEntity, err)

		return
	}

	address := strings.TrimSpace(req.Address)

	job := Job{
		ID:     uuid.New().String(),
		Name:   lo.Ternary(strings.TrimSpace(req.Name) != "", strings.TrimSpace(req.Name), address),
		Date:   time.Now().UTC(),
		Status: StatusPending,
		Data: JobData{
			Address:   address,
			MaxImages: min(lo.FromPtrOr(req.MaxImages, harvest.DefaultMaxImages), harvest.MaxImagesLimit),
		},
	}

	if err := job.Validate(); err != nil {
		renderError(w, http.StatusUnprocessableEntity, err)

		return
	}

	if err := s.svc.Create(r.Context(), &job); err != nil {
		renderError(w, http.StatusInternalServerError, fmt.Errorf("failed to create job: %w", err))

		return
	}

	s.log.Info("job created", zap.String("job_id", job.ID), zap.String("address", address))

	renderJSON(w, http.StatusCreated, createJobResponse{ID: job.ID})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.svc.All(r.Context())
	if err != nil {
		renderError(w, http.StatusInternalServerError, err)

		return
	}

	renderJSON(w, http.StatusOK, lo.Map(jobs, func(j Job, _ int) jobDTO {
		return toJobDTO(j)
	}))
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		renderError(w, statusFor(err), err)

		return
	}

	renderJSON(w, http.StatusOK, toJobDTO(job))
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		renderError(w, statusFor(err), err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	path, err := s.svc.GetCSV(r.Context(), id)
	if err != nil {
		renderError(w, statusFor(err), err)

		return
	}

	f, err := os.Open(path)
	if err != nil {
		renderError(w, http.StatusInternalServerError, err)

		return
	}

	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", id))
	w.Header().Set("Content-Type", "text/csv")

	if _, err := io.Copy(w, f); err != nil {
		s.log.Warn("failed to send csv", zap.String("job_id", id), zap.Error(err))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidID):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}

	return nil
}

func renderError(w http.ResponseWriter, code int, err error) {
	renderJSON(w, code, errorResponse{Error: err.Error()})
}

func renderJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(data)
}

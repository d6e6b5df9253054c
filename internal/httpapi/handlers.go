package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/services"
)

func (s *Server) ping(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "pong")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	token, err := s.svc.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.logger.Warn(r.Context(), "login rejected", "username", req.Username)
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "Bearer"})
}

type deviceRequest struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	Port         int    `json:"port"`
	MACAddress   string `json:"mac_address"`
	Model        string `json:"model"`
	Firmware     string `json:"firmware"`
	SerialNumber string `json:"serial_number"`
}

func (d deviceRequest) device(id string) *models.Device {
	return &models.Device{
		ID:           id,
		Name:         d.Name,
		Address:      d.Address,
		Port:         d.Port,
		MACAddress:   d.MACAddress,
		Model:        d.Model,
		Firmware:     d.Firmware,
		SerialNumber: d.SerialNumber,
	}
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Devices.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []models.Device{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.svc.Devices.Create(r.Context(), req.device(""))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) getDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Devices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) updateDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.svc.Devices.Update(r.Context(), req.device(chi.URLParam(r, "id")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) deleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Devices.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// outcome writes terminal results with 200 and request errors with their
// own status.
func (s *Server) outcome(w http.ResponseWriter, r *http.Request, out services.Outcome, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deviceInfo(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Devices.Info(r.Context(), chi.URLParam(r, "id"))
	s.outcome(w, r, out, err)
}

func (s *Server) testConnection(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Devices.TestConnection(r.Context(), chi.URLParam(r, "id"))
	s.outcome(w, r, out, err)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Devices.Health(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Users.ListByDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var req services.UserUpdate
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.svc.Users.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) downloadUsers(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Sync.DownloadUsers(r.Context(), chi.URLParam(r, "id"))
	s.outcome(w, r, out, err)
}

func (s *Server) uploadUsers(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Sync.UploadUsers(r.Context(), chi.URLParam(r, "id"))
	s.outcome(w, r, out, err)
}

type downloadLogsRequest struct {
	ClearLogs *bool `json:"clear_logs"`
}

// clearLogs reads clear_logs from the body, falling back to the clearLogs
// query parameter. nil means the configured default.
func clearLogs(r *http.Request) (*bool, error) {
	var req downloadLogsRequest
	if err := decodeOptional(r, &req); err != nil {
		return nil, err
	}
	if req.ClearLogs != nil {
		return req.ClearLogs, nil
	}
	return queryBool(r, "clearLogs")
}

func (s *Server) downloadLogs(w http.ResponseWriter, r *http.Request) {
	clear, err := clearLogs(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.svc.Sync.DownloadLogs(r.Context(), chi.URLParam(r, "id"), clear)
	s.outcome(w, r, out, err)
}

func (s *Server) downloadAllLogs(w http.ResponseWriter, r *http.Request) {
	clear, err := clearLogs(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.svc.Sync.DownloadAllLogs(r.Context(), clear)
	s.outcome(w, r, out, err)
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", services.DefaultPageSize)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page, err := s.svc.Logs.List(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) dbStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.DB.Status(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) dbOptimize(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DB.Optimize(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "store optimized")
}

func (s *Server) dbBackup(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.DB.Backup(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services.Outcome{Success: true, Message: "backup uploaded", Data: res})
}

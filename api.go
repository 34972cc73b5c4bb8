package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path"
	"time"

	"golang.org/x/exp/slog"
)

type APIServer struct {
	db         *PostgreSQLDatabase
	listenAddr string
	uploadDir  string
}

func NewAPIServer(db *PostgreSQLDatabase, listenAddr, uploadDir string) *APIServer {
	return &APIServer{
		db:         db,
		listenAddr: listenAddr,
		uploadDir:  uploadDir,
	}
}

type APIFunc func(w http.ResponseWriter, r *http.Request) error

func makeHandler(f APIFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)

		var statusError *StatusError
		if errors.As(err, &statusError) {
			slog.Error("Writing API Status Error to response", "status_error", statusError, "error", statusError.Err)

			msg := statusError.Message
			if msg == "" {
				msg = http.StatusText(statusError.Status)
			}

			writeJSON(w, statusError.Status, MessageResponse{Message: msg})

			return
		}

		if err != nil {
			slog.Error("Writing an error to response", "error", err)
			writeJSON(w, http.StatusInternalServerError, MessageResponse{Message: "internal server error"})

			return
		}
	}
}

// StatusError maps a handler failure to a response class. Message is what the
// client sees; Err is only logged and never leaves the process.
type StatusError struct {
	Err     error  `json:"-"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (a *StatusError) Error() string {
	if a.Err != nil {
		return a.Err.Error()
	}

	return a.Message
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (s *APIServer) routes() http.Handler {
	r := http.NewServeMux()

	r.HandleFunc("/api/register", makeHandler(s.HandleRegister))
	r.HandleFunc("/api/login", makeHandler(s.HandleLogin))
	r.HandleFunc("/api/verifier-ticket", makeHandler(s.HandleVerifierTicket))
	r.HandleFunc("/api/tickets", makeHandler(s.HandleGetTickets))
	r.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadDir))))

	return corsMiddleware(r)
}

func (s *APIServer) Run() error {
	srv := http.Server{
		Addr:              s.listenAddr,
		Handler:           s.routes(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       10 * time.Second,
	}

	slog.Info("Starting the server", "listen_addr", s.listenAddr)

	return srv.ListenAndServe()
}

func corsMiddleware(next http.Handler) http.Handler {
	origin := os.Getenv("CORS_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type HandleRegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *APIServer) HandleRegister(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return &StatusError{Status: http.StatusMethodNotAllowed}
	}

	var req HandleRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &StatusError{Err: err, Message: "invalid request body", Status: http.StatusBadRequest}
	}

	if req.Username == "" || req.Password == "" {
		return &StatusError{Message: "username and password are required", Status: http.StatusBadRequest}
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return &StatusError{Err: err, Message: "server error", Status: http.StatusInternalServerError}
	}

	if _, err := s.db.CreateUser(r.Context(), req.Username, hash); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return &StatusError{Err: err, Message: "username already taken", Status: http.StatusConflict}
		}

		return &StatusError{Err: err, Message: "server error", Status: http.StatusInternalServerError}
	}

	return writeJSON(w, http.StatusCreated, MessageResponse{Message: "registration successful"})
}

type HandleLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type HandleLoginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

func (s *APIServer) HandleLogin(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return &StatusError{Status: http.StatusMethodNotAllowed}
	}

	var req HandleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &StatusError{Err: err, Message: "invalid request body", Status: http.StatusBadRequest}
	}

	if req.Username == "" || req.Password == "" {
		return &StatusError{Message: "username and password are required", Status: http.StatusBadRequest}
	}

	// A missing user and a wrong password must be indistinguishable to the
	// caller.
	invalidCredentials := &StatusError{Message: "invalid username or password", Status: http.StatusUnauthorized}

	user, err := s.db.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return invalidCredentials
		}

		return &StatusError{Err: err, Message: "server error", Status: http.StatusInternalServerError}
	}

	if !verifyPassword(req.Password, user.PasswordHash) {
		return invalidCredentials
	}

	token, err := NewJWTAccessToken(user)
	if err != nil {
		return &StatusError{Err: err, Message: "server error", Status: http.StatusInternalServerError}
	}

	return writeJSON(w, http.StatusOK, HandleLoginResponse{Message: "login successful", Token: token.Access})
}

type HandleVerifierTicketResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	TicketID int64  `json:"ticketId"`
}

func (s *APIServer) HandleVerifierTicket(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return &StatusError{Status: http.StatusMethodNotAllowed}
	}

	// Bound intake before parsing: without this the whole body is spooled to
	// temp files ahead of any policy check. The extra MiB covers the text
	// fields and multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageSize+1<<20)

	if err := r.ParseMultipartForm(MaxImageSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return &StatusError{Err: err, Message: "only image files up to 5MB are allowed", Status: http.StatusBadRequest}
		}

		return &StatusError{Err: err, Message: "all fields are required", Status: http.StatusBadRequest}
	}

	ticket := Ticket{
		FirstName:   r.FormValue("first_name"),
		LastName:    r.FormValue("last_name"),
		PhoneNumber: r.FormValue("phone_number"),
		Email:       r.FormValue("email"),
		CardType:    r.FormValue("card_type"),
		Code:        r.FormValue("code"),
	}

	if ticket.FirstName == "" || ticket.LastName == "" || ticket.PhoneNumber == "" ||
		ticket.Email == "" || ticket.CardType == "" || ticket.Code == "" {
		return &StatusError{Message: "all fields are required", Status: http.StatusBadRequest}
	}

	formFile, handler, err := r.FormFile("image")
	if err != nil {
		return &StatusError{Err: err, Message: "all fields are required", Status: http.StatusBadRequest}
	}
	defer formFile.Close()

	slog.Debug("Received an image",
		"filename", handler.Filename,
		"size", handler.Size,
		"header", handler.Header,
	)

	filename, err := saveUpload(s.uploadDir, handler, formFile)
	if err != nil {
		if errors.Is(err, ErrImageType) || errors.Is(err, ErrImageTooLarge) {
			return &StatusError{Err: err, Message: "only image files up to 5MB are allowed", Status: http.StatusBadRequest}
		}

		return &StatusError{Err: err, Message: "server error while saving the ticket", Status: http.StatusInternalServerError}
	}

	ticket.ImagePath = path.Join("uploads", filename)

	id, err := s.db.CreateTicket(r.Context(), ticket)
	if err != nil {
		// TODO: reconcile uploads orphaned by a failed insert; for now the
		// stored file is kept and logged.
		slog.Error("Ticket insert failed after image placement", "image_path", ticket.ImagePath, "error", err)

		return &StatusError{Err: err, Message: "server error while saving the ticket", Status: http.StatusInternalServerError}
	}

	slog.Debug("Saved a ticket", "ticket_id", id, "image_path", ticket.ImagePath)

	return writeJSON(w, http.StatusOK, HandleVerifierTicketResponse{
		Success:  true,
		Message:  "ticket verified and recorded",
		TicketID: id,
	})
}

func (s *APIServer) HandleGetTickets(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		return &StatusError{Status: http.StatusMethodNotAllowed}
	}

	tickets, err := s.db.GetAllTickets(r.Context())
	if err != nil {
		return &StatusError{Err: err, Message: "database error", Status: http.StatusInternalServerError}
	}

	return writeJSON(w, http.StatusOK, tickets)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

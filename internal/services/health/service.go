package health

import (
	"context"
	"database/sql"
	"os/exec"
	"time"
)

const pingTimeout = 2 * time.Second

// Report is the health payload.
type Report struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
	Worker   string `json:"worker"`
}

// Service encapsulates health-related checks.
type Service struct {
	DB            *sql.DB
	WorkerProgram string
	lookPath      func(string) (string, error)
}

// NewService constructs a new health service. db may be nil when analyses are kept in memory.
func NewService(db *sql.DB, workerProgram string) *Service {
	return &Service{DB: db, WorkerProgram: workerProgram, lookPath: exec.LookPath}
}

// Status checks the database and that the worker program can be resolved.
func (s *Service) Status(ctx context.Context) Report {
	r := Report{OK: true, Database: "memory", Worker: "ok"}

	if s.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := s.DB.PingContext(pingCtx); err != nil {
			r.OK = false
			r.Database = "unreachable"
		} else {
			r.Database = "ok"
		}
	}

	lookPath := s.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if s.WorkerProgram == "" {
		r.OK = false
		r.Worker = "not configured"
	} else if _, err := lookPath(s.WorkerProgram); err != nil {
		r.OK = false
		r.Worker = "not found"
	}
	return r
}

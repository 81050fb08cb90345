package router

import (
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	mem "med-dose-guard/internal/adapters/storage/memory"
	pg "med-dose-guard/internal/adapters/storage/postgres"
	sl "med-dose-guard/internal/adapters/storage/sqlite"
	"med-dose-guard/internal/domain/caregivers"
	"med-dose-guard/internal/domain/medications"
	"med-dose-guard/internal/domain/medlogs"
	"med-dose-guard/internal/domain/safety"
	"med-dose-guard/internal/middleware"
	"med-dose-guard/internal/platform/logger"
	"med-dose-guard/internal/ports/auth"
	"med-dose-guard/internal/ports/capabilities"
)

type Options struct {
	AuthVerifier auth.AuthVerifier     // puede ser nil (modo dev)
	Capabilities capabilities.Resolver // puede ser nil (sin tope free-tier)

	// Backend: DB explícita > MEDGUARD_DB_DSN (postgres) > SQLitePath > in-memory.
	DB         *sql.DB
	SQLitePath string

	// Margen antes de marcar slots overdue; 0 = default.
	Grace time.Duration

	Log logger.Logger // puede ser nil
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	medsRepo, logsRepo, grantsRepo := buildRepos(opts)

	// Services por módulo
	logsSvc := medlogs.NewService(logsRepo)
	medsSvc := medications.NewService(medsRepo, logsRepo)
	grantsSvc := caregivers.NewService(grantsRepo)

	gate := safety.NewGate(logsRepo)
	sched := safety.NewScheduler(opts.Grace, opts.Log)

	// Rutas por módulo
	medications.RegisterRoutes(r, medsSvc, grantsSvc, opts.Capabilities)
	medlogs.RegisterRoutes(r, logsSvc, medsSvc, grantsSvc)
	safety.RegisterRoutes(r, medsSvc, logsSvc, gate, sched, grantsSvc)
	caregivers.RegisterRoutes(r, grantsSvc, medsSvc)

	return r
}

func buildRepos(opts Options) (medications.Repository, medlogs.Repository, caregivers.Repository) {
	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("MEDGUARD_DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			} else if opts.Log != nil {
				opts.Log.Warn("postgres unavailable, falling back", map[string]any{"error": err.Error()})
			}
		}
	}
	if db != nil {
		return pg.NewMedicationsRepo(db), pg.NewLogsRepo(db), pg.NewCaregiversRepo(db)
	}

	path := opts.SQLitePath
	if path == "" {
		path = os.Getenv("MEDGUARD_SQLITE_PATH")
	}
	if path != "" {
		sdb, err := sl.Open(path)
		if err == nil {
			return sl.NewMedicationsRepo(sdb), sl.NewLogsRepo(sdb), sl.NewCaregiversRepo(sdb)
		}
		if opts.Log != nil {
			opts.Log.Warn("sqlite unavailable, falling back to memory", map[string]any{"error": err.Error()})
		}
	}

	return mem.NewMedicationsRepo(), mem.NewLogsRepo(), mem.NewCaregiversRepo()
}

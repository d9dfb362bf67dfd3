package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/course-roster-api/api"
	"github.com/linesmerrill/course-roster-api/config"
	"github.com/linesmerrill/course-roster-api/databases"
	"github.com/linesmerrill/course-roster-api/databases/memdb"
	"github.com/linesmerrill/course-roster-api/enrollment"
	"github.com/linesmerrill/course-roster-api/mailer"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router *mux.Router
	Config config.Config
	Engine *enrollment.Engine
	Svc    Service
	Mailer mailer.InviteSender

	dbHelper databases.DatabaseHelper
	client   databases.ClientHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	guard := api.NewGuard(a.Config.ServiceUser, a.Config.ServicePasswordHash)

	r := mux.NewRouter()
	r.Use(api.RequestLogger)

	c := Course{Svc: a.Svc, Mailer: a.Mailer, BaseURL: a.Config.BaseURL}
	i := Invite{Svc: a.Svc}
	m := Member{Svc: a.Svc}
	p := Professor{Svc: a.Svc}

	// healthchex
	r.HandleFunc("/health", api.HealthCheckHandler(a.client))

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	if a.Config.RequestTimeout > 0 {
		apiCreate.Use(api.TimeoutMiddleware(a.Config.RequestTimeout))
	}

	apiCreate.Handle("/auth/token", guard.Middleware(http.HandlerFunc(guard.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", guard.Middleware(http.HandlerFunc(guard.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/courses/check-token", guard.Middleware(http.HandlerFunc(c.CheckTokenHandler))).Methods("GET")
	apiCreate.Handle("/courses/{courseId}/students", guard.Middleware(http.HandlerFunc(c.RosterHandler))).Methods("GET")
	apiCreate.Handle("/courses/{courseId}/new-students", guard.Middleware(http.HandlerFunc(c.UnenrolledHandler))).Methods("GET")
	apiCreate.Handle("/courses/{courseId}/students/{studentId}", guard.Middleware(http.HandlerFunc(c.EnrollHandler))).Methods("POST")
	apiCreate.Handle("/courses/{courseId}/students/{studentId}", guard.Middleware(http.HandlerFunc(c.UnenrollHandler))).Methods("DELETE")
	apiCreate.Handle("/courses/{courseId}/students/{studentId}/role", guard.Middleware(http.HandlerFunc(c.ChangeRoleHandler))).Methods("PUT")
	apiCreate.Handle("/courses/{courseId}/generate-link", guard.Middleware(http.HandlerFunc(c.GenerateLinkHandler))).Methods("POST")
	apiCreate.Handle("/courses/{courseId}/reconcile", guard.Middleware(http.HandlerFunc(c.ReconcileHandler))).Methods("POST")
	apiCreate.Handle("/reconcile", guard.Middleware(http.HandlerFunc(c.ReconcileAllHandler))).Methods("POST")

	apiCreate.Handle("/invite/{token}", guard.Middleware(http.HandlerFunc(i.AcceptInviteHandler))).Methods("POST")

	apiCreate.Handle("/students/{studentId}/courses", guard.Middleware(http.HandlerFunc(m.CoursesHandler))).Methods("GET")

	apiCreate.Handle("/professors/{accountId}/courses", guard.Middleware(http.HandlerFunc(p.CoursesHandler))).Methods("GET")
	apiCreate.Handle("/professors/{accountId}/courses", guard.Middleware(http.HandlerFunc(p.CreateCourseHandler))).Methods("POST")
	apiCreate.Handle("/professors/{professorId}", guard.Middleware(http.HandlerFunc(p.ProfessorHandler))).Methods("GET")
	apiCreate.Handle("/professors/{professorId}", guard.Middleware(http.HandlerFunc(p.DeleteProfessorHandler))).Methods("DELETE")

	return r
}

// Initialize connects to the store, prepares the engine and builds the router
func (a *App) Initialize(ctx context.Context) error {
	client, err := a.connect(ctx)
	if err != nil {
		zap.S().With(err).Error("failed creating database client")
		return err
	}
	if err := client.Ping(ctx); err != nil {
		zap.S().With(err).Error("failed to ping database")
		return err
	}
	a.client = client
	a.dbHelper = databases.NewDatabase(&a.Config, client)

	engine := enrollment.New(a.dbHelper)
	engine.AdminToken = a.Config.AdminToken
	engine.InviteTTL = a.Config.InviteTTL
	if err := engine.EnsureIndexes(ctx); err != nil {
		zap.S().With(err).Error("failed to ensure indexes")
		return err
	}
	a.Engine = engine
	a.Svc = engine
	a.Mailer = mailer.New(a.Config.SendgridAPIKey, a.Config.MailFrom)

	a.Router = a.New()
	zap.S().Infow("app initialized", "database", a.Config.DatabaseName, "env", a.Config.Env)
	return nil
}

func (a *App) connect(ctx context.Context) (databases.ClientHelper, error) {
	if strings.HasPrefix(a.Config.URL, memdb.Scheme) {
		zap.S().Warn("using the in-memory store, data is lost on restart")
		return memdb.NewClient(), nil
	}
	return databases.NewClient(ctx, &a.Config)
}

// Close disconnects from the store
func (a *App) Close(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	return a.client.Disconnect(ctx)
}

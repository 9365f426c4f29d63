package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/minhng-dev/social-moderation-api/api"
	"github.com/minhng-dev/social-moderation-api/api/scheduler"
	"github.com/minhng-dev/social-moderation-api/config"
	"github.com/minhng-dev/social-moderation-api/databases"
	"github.com/minhng-dev/social-moderation-api/moderation"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// Initialize connects to the database, builds the router and starts the
// background jobs
func (a *App) Initialize() error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		zap.S().Errorw("failed to create mongo client", "error", err)
		return err
	}
	if err := client.Connect(context.Background()); err != nil {
		zap.S().Errorw("failed to connect to mongo", "error", err)
		return err
	}
	a.dbHelper = databases.NewDatabase(&a.Config, client)
	a.Router = a.New()

	a.Scheduler = scheduler.NewScheduler(
		databases.NewUserDatabase(a.dbHelper),
		databases.NewModerationLogDatabase(a.dbHelper),
		databases.NewSchedulerLockDatabase(a.dbHelper),
	)
	a.Scheduler.Start()
	return nil
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	auth := api.Auth{Secret: a.Config.JWTSecret}
	auth.SetupGoGuardian()

	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware)
	r.Use(api.TimeoutMiddleware(30 * time.Second))

	postDB := databases.NewPostDatabase(a.dbHelper)
	commentDB := databases.NewCommentDatabase(a.dbHelper)
	userDB := databases.NewUserDatabase(a.dbHelper)
	reportDB := databases.NewReportDatabase(a.dbHelper)
	appealDB := databases.NewAppealDatabase(a.dbHelper)
	logDB := databases.NewModerationLogDatabase(a.dbHelper)

	trust := &moderation.TrustManager{Users: userDB, Logs: logDB}
	scorer := moderation.NewHTTPScorer(a.Config.ScorerURL, a.Config.ScorerTimeout)
	gate := moderation.NewGate(scorer, logDB, trust, a.Config.AutoRejectThreshold)

	u := User{DB: userDB, LogDB: logDB, PostDB: postDB, CommentDB: commentDB, ReportDB: reportDB, Auth: auth}
	c := Content{PostDB: postDB, CommentDB: commentDB, UserDB: userDB, Gate: gate,
		Poller: moderation.NewStatusPoller(a.Config.StatusPollInterval, a.Config.StatusPollAttempts)}
	m := Moderation{PostDB: postDB, CommentDB: commentDB, UserDB: userDB, ReportDB: reportDB, AppealDB: appealDB, LogDB: logDB, Trust: trust}
	rep := Report{PostDB: postDB, CommentDB: commentDB, UserDB: userDB, ReportDB: reportDB, LogDB: logDB,
		Trust: trust, Limiter: moderation.NewLimiter(time.Hour, 10)}
	ap := Appeal{PostDB: postDB, CommentDB: commentDB, UserDB: userDB, AppealDB: appealDB, LogDB: logDB, Trust: trust}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)
	r.Handle("/metrics", api.MetricsHandler())

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/user/create-user", http.HandlerFunc(u.UserCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/login", http.HandlerFunc(u.LoginHandler)).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/posts", api.Middleware(http.HandlerFunc(c.CreatePostHandler))).Methods("POST")
	apiCreate.Handle("/posts/{postId}/comments", api.Middleware(http.HandlerFunc(c.CreateCommentHandler))).Methods("POST")
	apiCreate.Handle("/content/{kind}/{id}/status", api.Middleware(http.HandlerFunc(c.ContentStatusHandler))).Methods("GET")

	apiCreate.Handle("/report/{kind}/{id}", api.Middleware(http.HandlerFunc(rep.FileReportHandler))).Methods("POST")
	apiCreate.Handle("/appeal/{kind}/{id}", api.Middleware(http.HandlerFunc(ap.FileAppealHandler))).Methods("POST")

	mod := func(h http.HandlerFunc) http.Handler {
		return api.Middleware(api.RequireModerator(h))
	}
	apiCreate.Handle("/moderation/pending/{kind}", mod(m.PendingContentHandler)).Methods("GET")
	apiCreate.Handle("/moderation/review/{kind}/{id}", mod(m.ReviewDetailHandler)).Methods("GET")
	apiCreate.Handle("/moderation/approve/{kind}/{id}", mod(m.ApproveHandler)).Methods("POST")
	apiCreate.Handle("/moderation/reject/{kind}/{id}", mod(m.RejectHandler)).Methods("POST")
	apiCreate.Handle("/moderation/reports", mod(rep.ListReportsHandler)).Methods("GET")
	apiCreate.Handle("/moderation/reports/{id}/dismiss", mod(rep.DismissReportHandler)).Methods("POST")
	apiCreate.Handle("/moderation/reports/{id}/resolve", mod(rep.ResolveReportHandler)).Methods("POST")
	apiCreate.Handle("/moderation/appeals", mod(ap.ListAppealsHandler)).Methods("GET")
	apiCreate.Handle("/moderation/resolve-appeal/{id}", mod(ap.ResolveAppealHandler)).Methods("POST")
	apiCreate.Handle("/moderation/ban/{userId}", mod(u.BanHandler)).Methods("POST")
	apiCreate.Handle("/moderation/unban/{userId}", mod(u.UnbanHandler)).Methods("POST")
	apiCreate.Handle("/moderation/users/{userId}/warn", mod(u.WarnHandler)).Methods("POST")
	apiCreate.Handle("/moderation/users/{userId}/trust", mod(u.TrustDetailHandler)).Methods("GET")
	apiCreate.Handle("/moderation/stats", mod(m.StatsHandler)).Methods("GET")

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, `{"alive": true}`)
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/parabrain/internal/agentresult"
	"github.com/lalith-99/parabrain/internal/chat"
	"github.com/lalith-99/parabrain/internal/middleware"
	"github.com/lalith-99/parabrain/internal/notify"
	"github.com/lalith-99/parabrain/internal/repository"
	"github.com/lalith-99/parabrain/internal/service"
	"go.uber.org/zap"
)

// Deps is everything the HTTP layer needs. The composition root in
// cmd/server builds it; tests build it from the memory stores.
type Deps struct {
	Store        *repository.Store
	Convs        repository.ConversationStore
	Orchestrator *chat.Orchestrator
	Results      agentresult.Store
	Notifier     notify.Notifier

	// Health reports whether backing services are reachable. Nil means
	// always healthy (memory backends).
	Health func(ctx context.Context) error

	// JWTSecret empty disables authentication entirely.
	JWTSecret string
	TokenTTL  time.Duration

	// CallbackSecret guards POST /agent/results; empty leaves it open.
	CallbackSecret string

	CORSOrigins []string

	Logger *zap.Logger
}

// NewRouter builds the gin engine with every /v1 route registered.
func NewRouter(d Deps) *gin.Engine {
	notes := service.NewNoteService(d.Store, d.Notifier, d.Logger)

	users := NewUserHandler(d.Store.Users, d.Convs, d.JWTSecret, d.TokenTTL, d.Logger)
	projects := NewProjectHandler(d.Store.Users, d.Store.Projects, notes, d.Results, d.Notifier, d.Logger)
	areas := NewAreaHandler(d.Store.Users, d.Store.Areas, notes, d.Logger)
	noteHandler := NewNoteHandler(notes, d.Store.Tags, d.Logger)
	agent := NewAgentHandler(d.Orchestrator, d.Convs, d.Results, d.CORSOrigins, d.Logger)

	srv := gin.New()
	srv.Use(middleware.RequestLogger(d.Logger), gin.Recovery(), middleware.CORS(d.CORSOrigins))

	// Public: health for load balancers, signup and login to get a token,
	// and the callback the automation workflow posts agent results to.
	public := srv.Group("/v1")
	public.GET("/health", health(d.Health))
	public.POST("/users", users.Create)
	public.POST("/users/login", users.Login)
	if d.CallbackSecret != "" {
		public.POST("/agent/results/:kind", middleware.SharedSecret(d.CallbackSecret), agent.SaveResult)
	} else {
		d.Logger.Warn("AGENT_CALLBACK_SECRET not set, agent result callback is unauthenticated")
		public.POST("/agent/results/:kind", agent.SaveResult)
	}

	v1 := srv.Group("/v1")
	if d.JWTSecret != "" {
		v1.Use(middleware.AuthMiddleware(d.JWTSecret))
	} else {
		d.Logger.Warn("JWT_SECRET not set, API authentication disabled")
	}

	v1.GET("/users", users.List)
	v1.GET("/users/:id", users.Get)
	v1.PUT("/users/:id", users.Update)
	v1.DELETE("/users/:id", users.Delete)

	v1.POST("/projects", projects.Create)
	v1.GET("/projects/user/:userId", projects.ListByUser)
	v1.GET("/projects/:id", projects.Get)
	v1.PUT("/projects/:id", projects.Update)
	v1.DELETE("/projects/:id", projects.Delete)
	v1.GET("/projects/:id/notes", projects.Notes)
	v1.POST("/projects/:id/notes/:noteId", projects.AttachNote)
	v1.DELETE("/projects/:id/notes/:noteId", projects.DetachNote)
	v1.POST("/projects/:id/trigger", projects.Trigger)
	v1.GET("/projects/:id/agent/:kind", projects.AgentResult)

	v1.POST("/areas", areas.Create)
	v1.GET("/areas/user/:userId", areas.ListByUser)
	v1.GET("/areas/:id", areas.Get)
	v1.PUT("/areas/:id", areas.Update)
	v1.DELETE("/areas/:id", areas.Delete)
	v1.GET("/areas/:id/notes", areas.Notes)
	v1.POST("/areas/:id/notes/:noteId", areas.AttachNote)
	v1.DELETE("/areas/:id/notes/:noteId", areas.DetachNote)

	v1.POST("/notes", noteHandler.Create)
	v1.GET("/notes/user/:userId", noteHandler.ListByUser)
	v1.GET("/notes/:id", noteHandler.Get)
	v1.PUT("/notes/:id", noteHandler.Update)
	v1.DELETE("/notes/:id", noteHandler.Delete)
	v1.POST("/notes/:id/projects/:projectId", noteHandler.AttachProject)
	v1.DELETE("/notes/:id/projects/:projectId", noteHandler.DetachProject)
	v1.POST("/notes/:id/areas/:areaId", noteHandler.AttachArea)
	v1.DELETE("/notes/:id/areas/:areaId", noteHandler.DetachArea)
	v1.GET("/notes/:id/tags", noteHandler.ListTags)
	v1.POST("/notes/:id/tags", noteHandler.AddTag)
	v1.DELETE("/notes/:id/tags/:name", noteHandler.RemoveTag)
	v1.GET("/tags", noteHandler.AllTags)

	v1.POST("/agent/chat", agent.Chat)
	v1.GET("/agent/ws", agent.ChatWS)
	v1.GET("/agent/history/:conversationId", agent.History)
	v1.GET("/agent/conversations/user/:userId", agent.Conversations)
	v1.DELETE("/agent/conversation", agent.DeleteConversation)
	v1.GET("/agent/results/:kind/latest", agent.LatestResult)

	return srv
}

func health(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// Package api contains the API routes for the Git Coder API
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/nsvirk/gitcoderapi/internal/api/handlers"
	"github.com/nsvirk/gitcoderapi/internal/api/middleware"
	"github.com/nsvirk/gitcoderapi/internal/config"
	"github.com/nsvirk/gitcoderapi/internal/service"
	"github.com/nsvirk/gitcoderapi/pkg/utils/response"
)

// Services are the services the routes dispatch to
type Services struct {
	Sessions *service.SessionService
	Repos    *service.RepoService
	Files    *service.FileService
	Branches *service.BranchService
	Git      *service.GitService
	Commits  *service.CommitService
}

// SetupRoutes configures the routes for the API
func SetupRoutes(e *echo.Echo, cfg *config.Config, s Services) {
	e.HTTPErrorHandler = HTTPErrorHandler

	// Create a group for all API routes
	api := e.Group("/api")

	// Health route (unprotected)
	api.GET("/health", healthRoute(cfg, s.Sessions))

	requireSession := middleware.SessionMiddleware(s.Sessions)

	// Auth routes
	sessionHandler := handlers.NewSessionHandler(s.Sessions)
	authGroup := api.Group("/auth")
	authGroup.POST("/login", sessionHandler.Login, middleware.LoginRateLimiter(cfg.LoginRateLimit))
	authGroup.POST("/logout", sessionHandler.Logout)
	authGroup.GET("/validate", sessionHandler.Validate, requireSession)

	// Repository routes (protected)
	repoHandler := handlers.NewRepoHandler(s.Repos)
	repoGroup := api.Group("/repos", requireSession)
	repoGroup.GET("", repoHandler.ListRepos)
	repoGroup.POST("", repoHandler.CreateRepo)

	// Branch routes (protected)
	branchHandler := handlers.NewBranchHandler(s.Branches)
	branchGroup := api.Group("/branches", requireSession)
	branchGroup.GET("", branchHandler.ListBranches)
	branchGroup.POST("", branchHandler.CreateBranch)
	branchGroup.POST("/switch", branchHandler.SwitchBranch)

	// File routes (protected)
	fileHandler := handlers.NewFileHandler(s.Files)
	fileGroup := api.Group("/files", requireSession)
	fileGroup.GET("/contents", fileHandler.GetContents)
	fileGroup.GET("/file", fileHandler.GetFile)
	fileGroup.PUT("/file", fileHandler.UpdateFile)
	fileGroup.POST("/file", fileHandler.CreateFile)
	fileGroup.DELETE("/file", fileHandler.DeleteFile)
	fileGroup.GET("/search", fileHandler.Search)

	// Git routes (protected)
	gitHandler := handlers.NewGitHandler(s.Git, s.Commits)
	gitGroup := api.Group("/git", requireSession)
	gitGroup.GET("/status", gitHandler.GetStatus)
	gitGroup.POST("/commit", gitHandler.Commit)
	gitGroup.GET("/history", gitHandler.GetHistory)
	gitGroup.POST("/pull-request", gitHandler.CreatePullRequest)
	gitGroup.GET("/pull-requests", gitHandler.GetPullRequests)
	gitGroup.GET("/audit", gitHandler.GetAudit)
}

// healthRoute reports the service name, version and live session count
func healthRoute(cfg *config.Config, sessions *service.SessionService) echo.HandlerFunc {
	return func(c echo.Context) error {
		count, err := sessions.Count(c.Request().Context())
		if err != nil {
			return err
		}
		return response.SuccessResponse(c, response.Payload{
			"name":     cfg.APIName,
			"version":  cfg.APIVersion,
			"sessions": count,
		})
	}
}
